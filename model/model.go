package model

import "time"

type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"-"`
	IsAdmin  bool   `json:"is_admin"`
	IsNew    bool   `json:"is_new"`
}

// UserActivity tracks who created and who last updated an account.
type UserActivity struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	CreateUID  int64     `json:"create_uid"`
	WriteUID   int64     `json:"write_uid"`
	CreateDate time.Time `json:"create_date"`
	WriteDate  time.Time `json:"write_date"`
}

// Survey is the envelope of one submission received from the form backend.
type Survey struct {
	ID             int64     `json:"id"`
	FormdefVersion *string   `json:"formdef_version"`
	FormdefID      *string   `json:"formdef_id"`
	InstanceID     string    `json:"instanceID"`
	Key            *string   `json:"KEY"`
	SubmissionURL  *string   `json:"submission_url"`
	SubmissionDate time.Time `json:"SubmissionDate"`
}

// SurveyResponse holds the scalar answers of a survey.
type SurveyResponse struct {
	ID                  int64   `json:"id"`
	SurveyID            int64   `json:"survey_id"`
	ApprComm            *string `json:"appr_comm"`
	OtherApprComm       *string `json:"other_appr_comm"`
	KippraInteraction   *string `json:"kippra_interaction"`
	StartInteraction    *string `json:"start_interaction"`
	OverallSatisfaction *string `json:"overall_satisfaction"`
	LikeMostAbtKippra   *string `json:"like_most_abt_kippra"`
	NotLikeAbtKippra    *string `json:"not_like_abt_kippra"`
	AsCeoAdvice         *string `json:"as_ceo_advice"`
	Suggestions         *string `json:"suggestions"`
	Onbehalf            *string `json:"onbehalf"`
	Gender              *string `json:"gender"`
	Role                *string `json:"role"`
	Age                 *string `json:"age"`
	Disability          *string `json:"disability"`
	DisabilityTrue      bool    `json:"disability_true"`
	Education           *string `json:"education"`
	OtherEducation      *string `json:"other_education"`
	KwldgAbtKippra      *string `json:"kwldg_abt_kippra"`
	RespondentsName     *string `json:"respondents_name"`
	OrgName             *string `json:"org_name"`
	OrgCategory         *string `json:"org_category"`
	Note24              *string `json:"note24"`
	Note25              *string `json:"note25"`
}

// SurveyCategoryValue is one answer of a grouped question family. Value is
// nil for a null answer, which the store refuses.
type SurveyCategoryValue struct {
	ID       int64   `json:"id"`
	SurveyID int64   `json:"survey_id"`
	Category string  `json:"category"`
	Key      string  `json:"key"`
	Value    *string `json:"value"`
}
