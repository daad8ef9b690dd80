package models

// TaskState is the remote completion state of a task. The set of values is
// owned by the platform; only TaskStateValidated carries meaning here.
type TaskState string

const (
	TaskStateValidated  TaskState = "VALIDATED"
	TaskStateNotStarted TaskState = ""
)

// Campaign statuses that make a discovered campaign worth processing.
const (
	CampaignStatusLive    = "LIVE"
	CampaignStatusStarted = "STARTED"
)

type Campaign struct {
	ID     string `json:"campaignID"`
	Title  string `json:"title"`
	Status string `json:"campaignStatus"`
	Tasks  []Task `json:"campaignTasks,omitempty"`
}

// Actionable reports whether a discovered campaign should be driven.
func (c Campaign) Actionable() bool {
	return c.Status == CampaignStatusLive || c.Status == CampaignStatusStarted
}

type Task struct {
	ID    string `json:"taskID"`
	Title string `json:"title"`
}

type ProgressRecord struct {
	TaskID string    `json:"taskID"`
	State  TaskState `json:"userCampaignTaskProgressState"`
}

// CampaignDocument is the combined task and progress response for one
// campaign and one user.
type CampaignDocument struct {
	CampaignInfo struct {
		Tasks []Task `json:"campaignTasks"`
	} `json:"campaignInfo"`
	UserProgress struct {
		Details []ProgressRecord `json:"progressDetails"`
	} `json:"userCampaignProgressInfo"`
}

func (d *CampaignDocument) Tasks() []Task {
	if d == nil {
		return nil
	}
	return d.CampaignInfo.Tasks
}

func (d *CampaignDocument) Progress() []ProgressRecord {
	if d == nil {
		return nil
	}
	return d.UserProgress.Details
}
