package queue

const (
	TypeSpeechWarm = "speech:warm"
)

// SpeechWarmPayload asks a worker to render sentences into the audio cache
// ahead of the first listener.
type SpeechWarmPayload struct {
	Text      string   `json:"text"`
	Sentences []string `json:"sentences"`
	Voice     string   `json:"voice"`
	Format    string   `json:"format"`
	CacheKey  string   `json:"cache_key"`
}
