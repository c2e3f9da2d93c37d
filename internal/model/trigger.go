// SPDX-License-Identifier: MIT

package model

import "fmt"

// Trigger describes why a pipeline run was requested. It is created by the
// external scheduler, consumed once by the duplicate-run guard and then
// discarded; it is never persisted.
type Trigger struct {
	PipelineType string `json:"pipeline_type"`
	ScheduleName string `json:"schedule_name"`
	NominalTime  string `json:"nominal_time"`
	MarketTiming string `json:"market_timing"`
}

// Validate rejects triggers the guard cannot act on.
func (t Trigger) Validate() error {
	if t.ScheduleName == "" {
		return fmt.Errorf("trigger missing schedule_name")
	}
	if t.PipelineType == "" {
		return fmt.Errorf("trigger missing pipeline_type")
	}
	return nil
}
