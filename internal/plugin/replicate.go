package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nollyai/studio-server/internal/domain"
	"github.com/nollyai/studio-server/internal/providers/replicate"
)

// replicateSpec describes one long-running model-backed job type. All four
// variants share the create/poll mechanics and differ only in this spec.
type replicateSpec struct {
	jobType   domain.JobType
	cost      int
	model     string
	urlField  string // required payload field carrying the source media URL
	extra     []string
	resultKey string // key under which the produced artifact URL is returned
}

// ReplicateTask runs one media-processing job type on Replicate. Run starts a
// prediction and returns its id as the job handle; Poll advances it.
type ReplicateTask struct {
	spec   replicateSpec
	client *replicate.Client
}

func NewRoto(client *replicate.Client) *ReplicateTask {
	return &ReplicateTask{client: client, spec: replicateSpec{
		jobType:   domain.JobTypeRoto,
		cost:      10,
		model:     "nollyai/rotoscope-sam2",
		urlField:  "video_url",
		extra:     []string{"subject"},
		resultKey: "mask_url",
	}}
}

func NewColorGrade(client *replicate.Client) *ReplicateTask {
	return &ReplicateTask{client: client, spec: replicateSpec{
		jobType:   domain.JobTypeColorGrade,
		cost:      8,
		model:     "nollyai/color-grade-lut",
		urlField:  "video_url",
		extra:     []string{"style"},
		resultKey: "graded_url",
	}}
}

func NewAudioCleanup(client *replicate.Client) *ReplicateTask {
	return &ReplicateTask{client: client, spec: replicateSpec{
		jobType:   domain.JobTypeAudioCleanup,
		cost:      6,
		model:     "nollyai/audio-denoise",
		urlField:  "audio_url",
		extra:     []string{"denoise_level"},
		resultKey: "cleaned_url",
	}}
}

func NewMeshGeneration(client *replicate.Client) *ReplicateTask {
	return &ReplicateTask{client: client, spec: replicateSpec{
		jobType:   domain.JobTypeMeshGeneration,
		cost:      12,
		model:     "nollyai/image-to-mesh",
		urlField:  "image_url",
		extra:     []string{"detail"},
		resultKey: "mesh_url",
	}}
}

func (t *ReplicateTask) Type() domain.JobType { return t.spec.jobType }

func (t *ReplicateTask) Class() LatencyClass { return ClassLong }

func (t *ReplicateTask) Cost(json.RawMessage) int { return t.spec.cost }

func (t *ReplicateTask) Validate(payload json.RawMessage) error {
	fields, err := decodeFields(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	url, _ := fields[t.spec.urlField].(string)
	if strings.TrimSpace(url) == "" {
		return fmt.Errorf("%w: %s is required", domain.ErrInvalidPayload, t.spec.urlField)
	}
	return nil
}

func (t *ReplicateTask) Run(ctx context.Context, job *domain.Job) (Outcome, error) {
	fields, err := decodeFields(job.Payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("decode %s payload: %w", t.spec.jobType, err)
	}
	input := map[string]any{"source": fields[t.spec.urlField]}
	for _, key := range t.spec.extra {
		if value, ok := fields[key]; ok {
			input[key] = value
		}
	}
	prediction, err := t.client.CreatePrediction(ctx, t.spec.model, input)
	if err != nil {
		return Outcome{}, fmt.Errorf("create %s prediction: %w", t.spec.jobType, err)
	}
	return t.outcome(prediction)
}

func (t *ReplicateTask) Poll(ctx context.Context, handle string) (Outcome, error) {
	prediction, err := t.client.GetPrediction(ctx, handle)
	if err != nil {
		return Outcome{}, fmt.Errorf("poll %s prediction: %w", t.spec.jobType, err)
	}
	return t.outcome(prediction)
}

func (t *ReplicateTask) outcome(prediction *replicate.Prediction) (Outcome, error) {
	switch prediction.Status {
	case replicate.StatusSucceeded:
		url := firstURL(prediction.Output)
		if url == "" {
			return Failed("prediction succeeded without output"), nil
		}
		return Completed(map[string]any{
			t.spec.resultKey: url,
			"model":          t.spec.model,
		})
	case replicate.StatusFailed, replicate.StatusCanceled:
		message := prediction.Error
		if message == "" {
			message = fmt.Sprintf("prediction %s", prediction.Status)
		}
		return Failed(message), nil
	default:
		return InProgress(prediction.ID), nil
	}
}

func decodeFields(payload json.RawMessage) (map[string]any, error) {
	fields := make(map[string]any)
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// firstURL digs the artifact URL out of a prediction output, which models
// variously report as a string, a list of strings, or an object.
func firstURL(output json.RawMessage) string {
	if len(output) == 0 {
		return ""
	}
	var asString string
	if err := json.Unmarshal(output, &asString); err == nil {
		return asString
	}
	var asList []string
	if err := json.Unmarshal(output, &asList); err == nil && len(asList) > 0 {
		return asList[0]
	}
	var asMap map[string]any
	if err := json.Unmarshal(output, &asMap); err == nil {
		for _, key := range []string{"url", "output", "file"} {
			if value, ok := asMap[key].(string); ok && value != "" {
				return value
			}
		}
	}
	return ""
}
