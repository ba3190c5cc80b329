package domain

import "time"

// Optional marks a value that was explicitly supplied by a caller.
type Optional[T any] struct {
	Set   bool
	Value T
}

func Some[T any](v T) Optional[T] { return Optional[T]{Set: true, Value: v} }

// ProjectPatch is the allow-listed set of project fields a mutation may change.
type ProjectPatch struct {
	Title         Optional[string]
	Description   Optional[string]
	StartDate     Optional[*time.Time]
	EndDate       Optional[*time.Time]
	Status        Optional[ProjectStatus]
	AssignedUsers Optional[[]string]
}

// Supplied returns the explicitly supplied fields keyed by their wire name.
func (p ProjectPatch) Supplied() map[string]any {
	out := map[string]any{}
	if p.Title.Set {
		out["title"] = p.Title.Value
	}
	if p.Description.Set {
		out["description"] = p.Description.Value
	}
	if p.StartDate.Set {
		out["startDate"] = p.StartDate.Value
	}
	if p.EndDate.Set {
		out["endDate"] = p.EndDate.Value
	}
	if p.Status.Set {
		out["status"] = p.Status.Value
	}
	if p.AssignedUsers.Set {
		out["assignedUsers"] = p.AssignedUsers.Value
	}
	return out
}

// Fields exposes the mutable fields of a project keyed by wire name.
func (p Project) Fields() map[string]any {
	return map[string]any{
		"title":         p.Title,
		"description":   p.Description,
		"startDate":     p.StartDate,
		"endDate":       p.EndDate,
		"status":        p.Status,
		"assignedUsers": p.AssignedUsers,
	}
}

// Apply returns a new project with the patch applied; the receiver is left untouched.
func (p Project) Apply(patch ProjectPatch, updatedAt time.Time) Project {
	next := p.Clone()
	if patch.Title.Set {
		next.Title = patch.Title.Value
	}
	if patch.Description.Set {
		next.Description = patch.Description.Value
	}
	if patch.StartDate.Set {
		next.StartDate = cloneTime(patch.StartDate.Value)
	}
	if patch.EndDate.Set {
		next.EndDate = cloneTime(patch.EndDate.Value)
	}
	if patch.Status.Set {
		next.Status = patch.Status.Value
	}
	if patch.AssignedUsers.Set {
		next.AssignedUsers = cloneSlice(patch.AssignedUsers.Value)
	}
	next.UpdatedAt = Later(p.UpdatedAt, updatedAt)
	return next
}

// TaskPatch is the allow-listed set of task fields a mutation may change.
type TaskPatch struct {
	Title       Optional[string]
	Description Optional[string]
	DueDate     Optional[*time.Time]
	Status      Optional[TaskStatus]
	Priority    Optional[TaskPriority]
	AssignedTo  Optional[string]
	Project     Optional[string]
	SubTasks    Optional[[]SubTask]
}

func (p TaskPatch) Supplied() map[string]any {
	out := map[string]any{}
	if p.Title.Set {
		out["title"] = p.Title.Value
	}
	if p.Description.Set {
		out["description"] = p.Description.Value
	}
	if p.DueDate.Set {
		out["dueDate"] = p.DueDate.Value
	}
	if p.Status.Set {
		out["status"] = p.Status.Value
	}
	if p.Priority.Set {
		out["priority"] = p.Priority.Value
	}
	if p.AssignedTo.Set {
		out["assignedTo"] = p.AssignedTo.Value
	}
	if p.Project.Set {
		out["project"] = p.Project.Value
	}
	if p.SubTasks.Set {
		out["subTasks"] = p.SubTasks.Value
	}
	return out
}

func (t Task) Fields() map[string]any {
	return map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"dueDate":     t.DueDate,
		"status":      t.Status,
		"priority":    t.Priority,
		"assignedTo":  t.AssignedTo,
		"project":     t.Project,
		"subTasks":    t.SubTasks,
	}
}

func (t Task) Apply(patch TaskPatch, updatedAt time.Time) Task {
	next := t.Clone()
	if patch.Title.Set {
		next.Title = patch.Title.Value
	}
	if patch.Description.Set {
		next.Description = patch.Description.Value
	}
	if patch.DueDate.Set {
		next.DueDate = cloneTime(patch.DueDate.Value)
	}
	if patch.Status.Set {
		next.Status = patch.Status.Value
	}
	if patch.Priority.Set {
		next.Priority = patch.Priority.Value
	}
	if patch.AssignedTo.Set {
		next.AssignedTo = patch.AssignedTo.Value
	}
	if patch.Project.Set {
		next.Project = patch.Project.Value
	}
	if patch.SubTasks.Set {
		next.SubTasks = cloneSlice(patch.SubTasks.Value)
	}
	next.UpdatedAt = Later(t.UpdatedAt, updatedAt)
	return next
}

// Later returns the later of two instants so updatedAt never moves backwards.
func Later(prev, next time.Time) time.Time {
	if next.Before(prev) {
		return prev
	}
	return next
}
