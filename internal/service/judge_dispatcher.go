package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Judge dispatch transports.
const (
	DispatchNone  = "none"
	DispatchRedis = "redis"
	DispatchNATS  = "nats"
)

// JudgeJob is the hand-off message consumed by the external judge.
type JudgeJob struct {
	JobID         string    `json:"job_id"`
	SubmissionID  uint      `json:"submission_id"`
	ProblemID     uint      `json:"problem_id"`
	UserID        string    `json:"user_id"`
	GitHash       string    `json:"git_hash,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// NewJudgeJob stamps a job for the given submission.
func NewJudgeJob(submissionID, problemID uint, userID, gitHash string) JudgeJob {
	return JudgeJob{
		JobID:        uuid.NewString(),
		SubmissionID: submissionID,
		ProblemID:    problemID,
		UserID:       userID,
		GitHash:      gitHash,
		EnqueuedAt:   time.Now().UTC(),
	}
}

// JudgeDispatcher hands pending submissions to the judge.
type JudgeDispatcher interface {
	Dispatch(ctx context.Context, job JudgeJob) error
	Transport() string
}

// NewJudgeDispatcher selects the dispatcher for mode. channelBase names the redis list and NATS subject.
func NewJudgeDispatcher(mode, channelBase string, redisClient *redis.Client, natsConn *nats.Conn, logger zerolog.Logger) (JudgeDispatcher, error) {
	logger = logger.With().Str("component", "judge_dispatcher").Logger()
	if channelBase == "" {
		channelBase = "ada"
	}

	switch mode {
	case "", DispatchNone:
		return noopDispatcher{logger: logger}, nil
	case DispatchRedis:
		if redisClient == nil {
			return nil, fmt.Errorf("redis judge dispatch requires a redis client")
		}
		return &redisDispatcher{client: redisClient, queue: channelBase + ":judge:jobs"}, nil
	case DispatchNATS:
		if natsConn == nil {
			return nil, fmt.Errorf("nats judge dispatch requires a nats connection")
		}
		subject := strings.ReplaceAll(channelBase, ":", ".") + ".judge.jobs"
		return &natsDispatcher{conn: natsConn, subject: subject}, nil
	default:
		return nil, fmt.Errorf("unsupported judge dispatch %q", mode)
	}
}

type redisDispatcher struct {
	client *redis.Client
	queue  string
}

func (d *redisDispatcher) Dispatch(ctx context.Context, job JudgeJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.client.LPush(ctx, d.queue, payload).Err()
}

func (d *redisDispatcher) Transport() string {
	return DispatchRedis
}

type natsDispatcher struct {
	conn    *nats.Conn
	subject string
}

func (d *natsDispatcher) Dispatch(_ context.Context, job JudgeJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.conn.Publish(d.subject, payload)
}

func (d *natsDispatcher) Transport() string {
	return DispatchNATS
}

type noopDispatcher struct {
	logger zerolog.Logger
}

func (d noopDispatcher) Dispatch(_ context.Context, job JudgeJob) error {
	d.logger.Debug().Uint("submission_id", job.SubmissionID).Msg("judge dispatch disabled, judge polls the database")
	return nil
}

func (d noopDispatcher) Transport() string {
	return DispatchNone
}
