package pipeline

import "strings"

// CompletedMessage starts every status message.
const CompletedMessage = "Pipeline execution completed."

// StageReport is the per-stage view in the response.
type StageReport struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// StageReports groups the three stage reports.
type StageReports struct {
	Expand  StageReport `json:"expand"`
	Image   StageReport `json:"image"`
	Model3D StageReport `json:"model_3d"`
}

// GenerationResponse is the result of one run. Path fields hold a file path
// or a status marker and are never empty.
type GenerationResponse struct {
	OriginalPrompt string       `json:"original_prompt"`
	ExpandedPrompt string       `json:"expanded_prompt"`
	ImagePath      string       `json:"image_path"`
	Model3DPath    string       `json:"model_3d_path"`
	StatusMessage  string       `json:"status_message"`
	RunID          string       `json:"run_id,omitempty"`
	RecordID       uint         `json:"record_id,omitempty"`
	Stages         StageReports `json:"stages"`

	ExpandOutcome  StageOutcome `json:"-"`
	ImageOutcome   StageOutcome `json:"-"`
	Model3DOutcome StageOutcome `json:"-"`
}

func buildResponse(prompt, expanded string, expand StageOutcome, image, model Artifact) *GenerationResponse {
	return &GenerationResponse{
		OriginalPrompt: prompt,
		ExpandedPrompt: expanded,
		ImagePath:      image.Path(),
		Model3DPath:    model.Path(),
		StatusMessage:  StatusMessage(image.Outcome, model.Outcome),
		Stages: StageReports{
			Expand:  report(expand),
			Image:   report(image.Outcome),
			Model3D: report(model.Outcome),
		},
		ExpandOutcome:  expand,
		ImageOutcome:   image.Outcome,
		Model3DOutcome: model.Outcome,
	}
}

func report(o StageOutcome) StageReport {
	r := StageReport{Status: o.Kind.String()}
	if !o.IsSuccess() {
		r.Detail = o.Marker()
	}
	return r
}

// StatusMessage summarizes the generation stages. A clause is appended for
// each stage that did not succeed, with the marker text after its first colon
// as the detail.
func StatusMessage(image, model StageOutcome) string {
	var b strings.Builder
	b.WriteString(CompletedMessage)
	if !image.IsSuccess() {
		b.WriteString(" Image generation issue: ")
		b.WriteString(clauseDetail(image))
		b.WriteString(".")
	}
	if !model.IsSuccess() {
		b.WriteString(" 3D model generation issue: ")
		b.WriteString(clauseDetail(model))
		b.WriteString(".")
	}
	return b.String()
}

// clauseDetail drops the detail's own trailing period so the clause ends
// with exactly one.
func clauseDetail(o StageOutcome) string {
	return strings.TrimRight(o.Detail(), ".")
}
