package optimizer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/bq-insights/backend/internal/metrics"
	"github.com/bq-insights/backend/pkg/circuitbreaker"
	"github.com/bq-insights/backend/pkg/logger"
	"github.com/bq-insights/backend/pkg/retry"
)

var ErrSessionNotFound = errors.New("session not found")

// Event is one increment of agent output. Streaming consumers see every
// partial; non-streaming consumers keep only the last event, which carries
// the full aggregated text with Final set.
type Event struct {
	Author string
	Text   string
	Final  bool
	Err    error
}

// Runner drives one agent conversation per session. Sessions are explicitly
// created and must be explicitly deleted with the same app/user/session ids,
// regardless of whether Run succeeded.
type Runner interface {
	CreateSession(ctx context.Context, appName, userID string) (string, error)
	Run(ctx context.Context, userID, sessionID, message string) (<-chan Event, error)
	DeleteSession(ctx context.Context, appName, userID, sessionID string) error
}

type session struct {
	appName string
	userID  string
}

type openAIRunner struct {
	client      *openai.Client
	model       string
	agentName   string
	temperature float32
	maxTokens   int
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config

	mu       sync.Mutex
	sessions map[string]session
}

// NewOpenAIRunner builds a Runner over the chat completions API with an
// in-memory session registry.
func NewOpenAIRunner(apiKey, model string, temperature float32, maxTokens int) Runner {
	cb := circuitbreaker.NewCircuitBreaker("optimizer", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Optimizer runner initialized", zap.String("model", model))

	return &openAIRunner{
		client:      openai.NewClient(apiKey),
		model:       model,
		agentName:   "optimizer_agent",
		temperature: temperature,
		maxTokens:   maxTokens,
		cb:          cb,
		retryConfig: retryConfig,
		sessions:    make(map[string]session),
	}
}

func (r *openAIRunner) CreateSession(ctx context.Context, appName, userID string) (string, error) {
	sessionID := uuid.New().String()

	r.mu.Lock()
	r.sessions[sessionID] = session{appName: appName, userID: userID}
	r.mu.Unlock()

	logger.Debug("Session created",
		zap.String("app_name", appName),
		zap.String("user_id", userID),
		zap.String("session_id", sessionID),
	)
	return sessionID, nil
}

func (r *openAIRunner) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if s.appName != appName || s.userID != userID {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	delete(r.sessions, sessionID)
	logger.Debug("Session deleted", zap.String("session_id", sessionID))
	return nil
}

func (r *openAIRunner) Run(ctx context.Context, userID, sessionID, message string) (<-chan Event, error) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	r.mu.Unlock()
	if !ok || s.userID != userID {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	request := openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: r.temperature,
		MaxTokens:   r.maxTokens,
		Stream:      true,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	}

	// Only stream creation goes through the breaker and retry; once deltas
	// flow, a mid-stream failure surfaces as an Err event instead.
	var stream *openai.ChatCompletionStream
	err := r.cb.Execute(ctx, func() error {
		return retry.Do(ctx, r.retryConfig, func() error {
			var err error
			stream, err = r.client.CreateChatCompletionStream(ctx, request)
			if err != nil {
				return fmt.Errorf("failed to create completion stream: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	events := make(chan Event)
	go r.pump(ctx, stream, events)
	return events, nil
}

// pump forwards deltas until the stream ends or the caller's context is
// cancelled. Every send selects on ctx so an abandoned consumer cannot
// strand the goroutine or keep the stream open.
func (r *openAIRunner) pump(ctx context.Context, stream *openai.ChatCompletionStream, events chan<- Event) {
	defer close(events)
	defer stream.Close()

	send := func(event Event) bool {
		select {
		case events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var full strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			send(Event{Author: r.agentName, Err: fmt.Errorf("stream receive failed: %w", err)})
			return
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full.WriteString(delta)
		if !send(Event{Author: r.agentName, Text: delta}) {
			return
		}
	}

	text := full.String()
	metrics.LLMTokensUsed.WithLabelValues(r.model, "completion").Add(float64(len(text)) / 4)

	logger.Debug("Agent run finished", zap.Int("response_length", len(text)))
	send(Event{Author: r.agentName, Text: text, Final: true})
}
