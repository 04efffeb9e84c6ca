package survey

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/mbolis/survey-intake/model"
	"github.com/pkg/errors"
)

// SubmissionDateLayout is the timestamp format of the form backend. The
// fractional seconds may be omitted, and carry at most microseconds.
const SubmissionDateLayout = "2006-01-02T15:04:05.999999Z"

const maxFractionDigits = 6

const (
	StatusSuccess   = "success"
	StatusDuplicate = "duplicate"
)

var ErrNoInstanceID = errors.New("missing instanceID")

type Outcome struct {
	Status   string
	SurveyID int64
}

// Ingest stores a reshaped submission: one survey, its scalar answers and one
// row per grouped answer, all in a single transaction. A submission whose
// instanceID is already stored is reported as a duplicate and not written.
func Ingest(ctx context.Context, db *sql.DB, p Payload) (Outcome, error) {
	instanceID := p.Get("instanceID")
	if instanceID.String() == "" {
		return Outcome{}, ErrNoInstanceID
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM survey WHERE instance_id = ?`,
		instanceID.String(),
	).Scan(&existing)
	switch {
	case err == nil:
		return Outcome{Status: StatusDuplicate, SurveyID: existing}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return Outcome{}, errors.Wrap(err, "find survey")
	}

	submitted, err := submissionDate(p.Get("SubmissionDate"))
	if err != nil {
		return Outcome{}, err
	}

	surveyID, err := insertSurvey(ctx, tx, surveyOf(instanceID.String(), submitted, p))
	if err != nil {
		return Outcome{}, errors.Wrap(err, "insert survey")
	}

	err = insertResponse(ctx, tx, responseOf(surveyID, p))
	if err != nil {
		return Outcome{}, errors.Wrap(err, "insert survey response")
	}

	err = insertCategoryValues(ctx, tx, surveyID, p)
	if err != nil {
		return Outcome{}, errors.Wrap(err, "insert category values")
	}

	err = tx.Commit()
	if err != nil {
		return Outcome{}, errors.Wrap(err, "commit")
	}
	return Outcome{Status: StatusSuccess, SurveyID: surveyID}, nil
}

func submissionDate(v Value) (time.Time, error) {
	switch v.Kind() {
	case Null:
		return time.Unix(0, 0).UTC(), nil
	case String:
		s := v.String()
		if i := strings.IndexByte(s, '.'); i >= 0 && len(strings.TrimSuffix(s[i+1:], "Z")) > maxFractionDigits {
			return time.Time{}, errors.Errorf("parse SubmissionDate %q: more than %d fractional digits", s, maxFractionDigits)
		}
		t, err := time.Parse(SubmissionDateLayout, s)
		if err != nil {
			return time.Time{}, errors.Wrap(err, "parse SubmissionDate")
		}
		return t, nil
	}
	return time.Time{}, errors.Errorf("SubmissionDate %s is not a string", v)
}

func surveyOf(instanceID string, submitted time.Time, p Payload) model.Survey {
	return model.Survey{
		FormdefVersion: p.Get("formdef_version").Ptr(),
		FormdefID:      p.Get("formdef_id").Ptr(),
		InstanceID:     instanceID,
		Key:            p.Get("KEY").Ptr(),
		SubmissionURL:  p.Get("submission_url").Ptr(),
		SubmissionDate: submitted,
	}
}

func insertSurvey(ctx context.Context, tx *sql.Tx, s model.Survey) (int64, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO survey (formdef_version, formdef_id, instance_id, submission_key, submission_url, submission_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		s.FormdefVersion, s.FormdefID, s.InstanceID, s.Key, s.SubmissionURL, s.SubmissionDate,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func responseOf(surveyID int64, p Payload) model.SurveyResponse {
	return model.SurveyResponse{
		SurveyID:            surveyID,
		ApprComm:            p.Get("appr_comm").Ptr(),
		OtherApprComm:       p.Get("other_appr_comm").Ptr(),
		KippraInteraction:   p.Get("kippra_interaction").Ptr(),
		StartInteraction:    p.Get("start_interaction").Ptr(),
		OverallSatisfaction: p.Get("overall_satisfaction").Ptr(),
		LikeMostAbtKippra:   p.Get("like_most_abt_kippra").Ptr(),
		NotLikeAbtKippra:    p.Get("not_like_abt_kippra").Ptr(),
		AsCeoAdvice:         p.Get("as_ceo_advice").Ptr(),
		Suggestions:         p.Get("suggestions").Ptr(),
		Onbehalf:            p.Get("onbehalf").Ptr(),
		Gender:              p.Get("gender").Ptr(),
		Role:                p.Get("org_role").Ptr(),
		Age:                 p.Get("age").Ptr(),
		Disability:          p.Get("disability").Ptr(),
		DisabilityTrue:      p.Get("disability_true").Truthy(),
		Education:           p.Get("education").Ptr(),
		OtherEducation:      p.Get("other_education").Ptr(),
		KwldgAbtKippra:      p.Get("kwldg_abt_kippra").Ptr(),
		RespondentsName:     p.Get("respondents_name").Ptr(),
		OrgName:             p.Get("org_name").Ptr(),
		OrgCategory:         p.Get("org_category").Ptr(),
		Note24:              p.Get("note24").Ptr(),
		Note25:              p.Get("note25").Ptr(),
	}
}

func insertResponse(ctx context.Context, tx *sql.Tx, r model.SurveyResponse) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO survey_responses (
			survey_id, appr_comm, other_appr_comm, kippra_interaction, start_interaction,
			overall_satisfaction, like_most_abt_kippra, not_like_abt_kippra, as_ceo_advice,
			suggestions, onbehalf, gender, role, age, disability, disability_true, education,
			other_education, kwldg_abt_kippra, respondents_name, org_name, org_category,
			note24, note25
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.SurveyID, r.ApprComm, r.OtherApprComm, r.KippraInteraction, r.StartInteraction,
		r.OverallSatisfaction, r.LikeMostAbtKippra, r.NotLikeAbtKippra, r.AsCeoAdvice,
		r.Suggestions, r.Onbehalf, r.Gender, r.Role, r.Age, r.Disability, r.DisabilityTrue, r.Education,
		r.OtherEducation, r.KwldgAbtKippra, r.RespondentsName, r.OrgName, r.OrgCategory,
		r.Note24, r.Note25,
	)
	return err
}

func insertCategoryValues(ctx context.Context, tx *sql.Tx, surveyID int64, p Payload) error {
	if len(p.Groups) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO survey_category_values (survey_id, category, field_key, value)
		VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, v := range categoryValuesOf(surveyID, p) {
		_, err = stmt.ExecContext(ctx, v.SurveyID, v.Category, v.Key, v.Value)
		if err != nil {
			return errors.Wrapf(err, "%s/%s", v.Category, v.Key)
		}
	}
	return nil
}

// categoryValuesOf flattens the grouped answers in group then key order.
func categoryValuesOf(surveyID int64, p Payload) []model.SurveyCategoryValue {
	var values []model.SurveyCategoryValue
	for _, prefix := range p.GroupNames() {
		category := CategoryLabel(prefix)
		group := p.Groups[prefix]
		for _, key := range sortedKeys(group) {
			values = append(values, model.SurveyCategoryValue{
				SurveyID: surveyID,
				Category: category,
				Key:      key,
				Value:    group[key].Ptr(),
			})
		}
	}
	return values
}
