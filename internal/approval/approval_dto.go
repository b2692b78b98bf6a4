package approval

type AutoApproveRequest struct {
	TimesheetID   string `json:"timesheet_id" binding:"required,uuid"`
	ManualTrigger bool   `json:"manual_trigger"`
}
