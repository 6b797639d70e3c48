package logging

// Standardized attribute keys. Keep these stable; the console handler and log
// consumers key off them.
const (
	FieldComponent  = "component"
	FieldEventType  = "event_type"
	FieldErrorHint  = "error_hint"
	FieldImpact     = "impact"
	FieldStage      = "stage"
	FieldRequestID  = "request_id"
	FieldPodcast    = "podcast"
	FieldEpisode    = "episode"
	FieldEpisodeURL = "episode_url"
	FieldBackend    = "backend"
)
