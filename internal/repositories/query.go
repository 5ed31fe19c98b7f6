package repository

import (
	"encoding/json"
	"strings"

	"gorm.io/gorm"
)

func applyTaskFilter(q *gorm.DB, f TaskFilter) *gorm.DB {
	if f.CreatorUID != "" {
		q = q.Where("creator_uid = ?", f.CreatorUID)
	}
	if f.AssigneeUID != "" {
		q = q.Where("assignee_uid = ?", f.AssigneeUID)
	}
	if f.ParticipantUID != "" {
		q = q.Where("(creator_uid = ? OR assignee_uid = ?)", f.ParticipantUID, f.ParticipantUID)
	}
	if f.ExcludeCreator != "" {
		q = q.Where("creator_uid <> ?", f.ExcludeCreator)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(f.Statuses))
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if f.City != "" {
		q = q.Where("LOWER(location_city) = LOWER(?)", f.City)
	}
	if f.MinBudget != nil {
		q = q.Where("budget_amount >= ?", *f.MinBudget)
	}
	if f.MaxBudget != nil {
		q = q.Where("budget_amount <= ?", *f.MaxBudget)
	}
	if len(f.SkillsAny) > 0 {
		q = whereJSONContainsAny(q, "skills_required", f.SkillsAny)
	}
	if f.ExpiresBefore != nil {
		q = q.Where("expires_at IS NOT NULL AND expires_at < ?", *f.ExpiresBefore)
	}
	return q
}

func applyTaskCondition(q *gorm.DB, c TaskCondition) *gorm.DB {
	if len(c.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(c.Statuses))
	}
	if c.AssigneeUID != "" {
		q = q.Where("assignee_uid = ?", c.AssigneeUID)
	}
	if c.ExpiresBefore != nil {
		q = q.Where("expires_at IS NOT NULL AND expires_at < ?", *c.ExpiresBefore)
	}
	return q
}

func applyApplicationFilter(q *gorm.DB, f ApplicationFilter) *gorm.DB {
	if f.TaskID != "" {
		q = q.Where("task_id = ?", f.TaskID)
	}
	if f.ApplicantUID != "" {
		q = q.Where("applicant_uid = ?", f.ApplicantUID)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("status IN ?", statusStrings(f.Statuses))
	}
	return q
}

func applyProfileFilter(q *gorm.DB, f ProfileFilter) *gorm.DB {
	if f.TaskersOnly {
		q = q.Where("tasker = ?", true)
	}
	if f.ExcludeUID != "" {
		q = q.Where("uid <> ?", f.ExcludeUID)
	}
	if len(f.SkillsAny) > 0 {
		q = whereJSONContainsAny(q, "skills", f.SkillsAny)
	}
	return q
}

// whereJSONContainsAny matches JSON string arrays holding any of values. The
// text match keeps the query portable between sqlite and postgres; skills are
// normalized on write so an exact quoted-element match is enough.
func whereJSONContainsAny(q *gorm.DB, column string, values []string) *gorm.DB {
	clauses := make([]string, 0, len(values))
	args := make([]interface{}, 0, len(values))
	for _, v := range values {
		quoted, err := json.Marshal(v)
		if err != nil {
			continue
		}
		clauses = append(clauses, "CAST("+column+" AS TEXT) LIKE ? ESCAPE '\\'")
		args = append(args, "%"+likeEscaper.Replace(string(quoted))+"%")
	}
	if len(clauses) == 0 {
		return q
	}
	return q.Where("("+strings.Join(clauses, " OR ")+")", args...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func paginate(q *gorm.DB, limit, offset int) *gorm.DB {
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func statusStrings[S ~string](in []S) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
