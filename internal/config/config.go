// Package config builds the process-wide Config once from the environment
// at startup and hands it to workers by value. A few settings outside
// Config are still read from the environment where they are used: LOG_MODE,
// REDIS_ADDR and PLANTUML_SERVER_URL in cmd/worker, OPENAI_* in
// agents.NewHTTPClient, and LOG_REDACTION_ENABLED/LOG_HASH_SALT in logger.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries every tunable named in spec.md §6 "Environment inputs".
type Config struct {
	QueueConnString string
	BlobConnString  string
	BlobContainer   string

	StatusTableName    string
	DocIndexTableName  string
	StatusTopics       []string // e.g. ["aidocwriter-status", "docwriter-status"]

	QueueNames QueueNames

	RequestTimeout time.Duration // 120s
	RendererTimeout time.Duration // 30s

	MaxSectionTokens      int // 2500
	WriteBatchSize        int // 5
	ReviewBatchSize       int // 3
	ReviewMaxPromptTokens int // 15000

	LockRenewSeconds int // 900, "sb_lock_renew_s"
	HandlerPoolSize  int // default 1; worker.Pool applies it as one limit shared by all queues, not per queue

	Streaming bool
}

// QueueNames are the named point-to-point queues from spec.md §6.
type QueueNames struct {
	PlanIntake     string
	IntakeResume   string
	Plan           string
	Write          string
	ReviewGeneral  string
	ReviewStyle    string
	ReviewCohesion string
	ReviewSummary  string
	Verify         string
	Rewrite        string
	DiagramPrep    string
	DiagramRender  string
	FinalizeReady  string
}

func defaultQueueNames() QueueNames {
	return QueueNames{
		PlanIntake:     "plan_intake",
		IntakeResume:   "intake_resume",
		Plan:           "plan",
		Write:          "write",
		ReviewGeneral:  "review_general",
		ReviewStyle:    "review_style",
		ReviewCohesion: "review_cohesion",
		ReviewSummary:  "review_summary",
		Verify:         "verify",
		Rewrite:        "rewrite",
		DiagramPrep:    "diagram_prep",
		DiagramRender:  "diagram_render",
		FinalizeReady:  "finalize_ready",
	}
}

// Load builds a Config from the environment, applying the defaults listed
// throughout spec.md §6.
func Load() Config {
	return Config{
		QueueConnString: getEnv("QUEUE_CONN_STRING", ""),
		BlobConnString:  getEnv("BLOB_CONN_STRING", ""),
		BlobContainer:   getEnv("BLOB_CONTAINER", "aidocwriter"),

		StatusTableName:   getEnv("STATUS_TABLE_NAME", "jobstatus"),
		DocIndexTableName: getEnv("DOC_INDEX_TABLE_NAME", "jobindex"),
		StatusTopics:      splitCSV(getEnv("STATUS_TOPICS", "aidocwriter-status,docwriter-status")),

		QueueNames: defaultQueueNames(),

		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT_S", 120*time.Second),
		RendererTimeout: getEnvDuration("RENDERER_TIMEOUT_S", 30*time.Second),

		MaxSectionTokens:      getEnvInt("MAX_SECTION_TOKENS", 2500),
		WriteBatchSize:        getEnvInt("WRITE_BATCH_SIZE", 5),
		ReviewBatchSize:       getEnvInt("REVIEW_BATCH_SIZE", 3),
		ReviewMaxPromptTokens: getEnvInt("REVIEW_MAX_PROMPT_TOKENS", 15000),

		LockRenewSeconds: getEnvInt("SB_LOCK_RENEW_S", 900),
		HandlerPoolSize:  getEnvInt("HANDLER_POOL_SIZE", 1),

		Streaming: getEnvBool("STREAMING", true),
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvBool(key string, def bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	n := getEnvInt(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}
