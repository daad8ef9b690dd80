package campaign

import "engageflow/models"

// Reconcile returns the tasks that still need completing, in their original
// order. A task's state comes from the progress record with the same id; a
// task without a record has not been started.
func Reconcile(tasks []models.Task, progress []models.ProgressRecord) []models.Task {
	states := make(map[string]models.TaskState, len(progress))
	for _, p := range progress {
		states[p.TaskID] = p.State
	}

	outstanding := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if states[t.ID] != models.TaskStateValidated {
			outstanding = append(outstanding, t)
		}
	}
	return outstanding
}
