package survey

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

var ErrFormRequired = errors.New("formdef_id is required")

type Form struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Forms lists the distinct form identifiers of the stored surveys.
func Forms(ctx context.Context, db *sql.DB) ([]Form, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT DISTINCT formdef_id
		FROM survey
		WHERE formdef_id IS NOT NULL
		ORDER BY formdef_id`)
	if err != nil {
		return nil, errors.Wrap(err, "query forms")
	}
	defer rows.Close()

	forms := []Form{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan form")
		}
		forms = append(forms, Form{ID: id, Name: id})
	}
	return forms, errors.Wrap(rows.Err(), "query forms")
}

type CountsFilter struct {
	FormID   string
	Category string
	Role     string
}

// CategoryCounts maps category -> question label (Q1, Q2...) -> Likert label
// -> number of answers.
type CategoryCounts map[string]map[string]map[string]int

func (c CategoryCounts) add(category, question, answer string, n int) {
	questions, ok := c[category]
	if !ok {
		questions = map[string]map[string]int{}
		c[category] = questions
	}
	answers, ok := questions[question]
	if !ok {
		answers = map[string]int{}
		questions[question] = answers
	}
	answers[answer] += n
}

// CountCategories counts the grouped answers of a form, optionally restricted
// to one category and to the respondents of one role.
func CountCategories(ctx context.Context, db *sql.DB, f CountsFilter) (CategoryCounts, error) {
	if f.FormID == "" {
		return nil, ErrFormRequired
	}

	var q strings.Builder
	q.WriteString(`
		SELECT v.category, v.field_key, v.value, COUNT(v.id)
		FROM survey_category_values v
		INNER JOIN survey_responses r ON (v.survey_id = r.survey_id)
		INNER JOIN survey s ON (s.id = r.survey_id)
		WHERE s.formdef_id = ?`)
	args := []any{f.FormID}
	if f.Category != "" {
		q.WriteString(` AND v.category = ?`)
		args = append(args, f.Category)
	}
	if f.Role != "" {
		q.WriteString(` AND r.role = ?`)
		args = append(args, f.Role)
	}
	q.WriteString(`
		GROUP BY v.category, v.field_key, v.value
		ORDER BY v.category, v.field_key, v.value`)

	rows, err := db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "query category counts")
	}
	defer rows.Close()

	counts := CategoryCounts{}
	for rows.Next() {
		var category, key, value string
		var n int
		if err := rows.Scan(&category, &key, &value, &n); err != nil {
			return nil, errors.Wrap(err, "scan category count")
		}
		// prod_1 and prod_01 both read Q1, so counts add up
		counts.add(category, QuestionLabel(key), LikertLabel(value), n)
	}
	return counts, errors.Wrap(rows.Err(), "query category counts")
}

// Dimensions of CategoryScores, in display order.
var Dimensions = []string{
	"Age",
	"Gender",
	"Disability Status",
	"Education Level",
	"Communication Channel",
	"Organization Type",
}

type KeyCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// CategoryScores maps each of the Dimensions to the respondent count per
// answer.
type CategoryScores map[string][]KeyCount

// tally sums counts per key, keeping keys in first-seen order.
type tally struct {
	index  map[string]int
	counts []KeyCount
}

func (t *tally) add(key string, n int) {
	if key == "" {
		return
	}
	if i, ok := t.index[key]; ok {
		t.counts[i].Count += n
		return
	}
	t.index[key] = len(t.counts)
	t.counts = append(t.counts, KeyCount{Key: key, Count: n})
}

// ScoreCategories counts the respondents of a form along each demographic
// dimension.
func ScoreCategories(ctx context.Context, db *sql.DB, formID string) (CategoryScores, error) {
	if formID == "" {
		return nil, ErrFormRequired
	}

	rows, err := db.QueryContext(ctx, `
		SELECT r.age, r.gender, r.disability, r.education, r.appr_comm, r.org_category, r.onbehalf, COUNT(r.id)
		FROM survey_responses r
		INNER JOIN survey s ON (s.id = r.survey_id)
		WHERE s.formdef_id = ?
		GROUP BY r.age, r.gender, r.disability, r.education, r.appr_comm, r.onbehalf, r.org_category
		ORDER BY r.age, r.gender, r.disability, r.education, r.appr_comm, r.onbehalf, r.org_category`,
		formID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query category scores")
	}
	defer rows.Close()

	tallies := make([]tally, len(Dimensions))
	for i := range tallies {
		tallies[i] = tally{index: map[string]int{}, counts: []KeyCount{}}
	}

	for rows.Next() {
		var age, gender, disability, education, apprComm, orgCategory, onbehalf sql.NullString
		var n int
		err := rows.Scan(&age, &gender, &disability, &education, &apprComm, &orgCategory, &onbehalf, &n)
		if err != nil {
			return nil, errors.Wrap(err, "scan category score")
		}

		tallies[0].add(age.String, n)
		tallies[1].add(gender.String, n)
		tallies[2].add(disability.String, n)
		tallies[3].add(education.String, n)
		tallies[4].add(apprComm.String, n)
		if org := OrganizationType(orgCategory.String, onbehalf.String); org != "" {
			tallies[5].add(OrgTypeLabel(org), n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "query category scores")
	}

	scores := make(CategoryScores, len(Dimensions))
	for i, dim := range Dimensions {
		scores[dim] = tallies[i].counts
	}
	return scores, nil
}

// OrganizationType picks the organization code of a respondent: org_category
// when answered, onbehalf otherwise.
func OrganizationType(orgCategory, onbehalf string) string {
	if orgCategory != "" {
		return orgCategory
	}
	return onbehalf
}
