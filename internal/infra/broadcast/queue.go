package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// TaskDispatch é o tipo da tarefa de despacho de broadcast
const TaskDispatch = "broadcast:dispatch"

// Parâmetros de retry da fila
const (
	taskMaxRetry  = 3
	taskRetryBase = 5 * time.Second
	taskTimeout   = 2 * time.Hour
	taskRetention = 24 * time.Hour
)

// DispatchPayload é o corpo serializado da tarefa de despacho
type DispatchPayload struct {
	BroadcastID uuid.UUID `json:"broadcastId"`
}

// NewDispatchTask monta a tarefa de despacho de um broadcast. O TaskID
// fixo por broadcast garante no máximo um job em voo por campanha.
func NewDispatchTask(broadcastID uuid.UUID) (*asynq.Task, []asynq.Option, error) {
	payload, err := json.Marshal(DispatchPayload{BroadcastID: broadcastID})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal dispatch payload: %w", err)
	}

	opts := []asynq.Option{
		asynq.TaskID(broadcastID.String()),
		asynq.MaxRetry(taskMaxRetry),
		asynq.Timeout(taskTimeout),
		asynq.Retention(taskRetention),
	}
	return asynq.NewTask(TaskDispatch, payload), opts, nil
}

// ErrAlreadyEnqueued indica que o broadcast já tem job em voo
var ErrAlreadyEnqueued = errors.New("broadcast already enqueued")

// Queue publica tarefas de despacho na fila durável
type Queue struct {
	client *asynq.Client
}

// NewQueue cria o publicador da fila
func NewQueue(addr, password string, db int) *Queue {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Queue{client: client}
}

// Enqueue publica o despacho de um broadcast. Jobs duplicados do mesmo
// broadcast são rejeitados com ErrAlreadyEnqueued.
func (q *Queue) Enqueue(broadcastID uuid.UUID) error {
	task, opts, err := NewDispatchTask(broadcastID)
	if err != nil {
		return err
	}

	_, err = q.client.Enqueue(task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return ErrAlreadyEnqueued
		}
		return fmt.Errorf("failed to enqueue dispatch: %w", err)
	}
	return nil
}

// Close encerra o publicador
func (q *Queue) Close() error {
	return q.client.Close()
}

// retryDelay implementa o backoff exponencial com base 5 s
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	return taskRetryBase * time.Duration(1<<n)
}

// NewQueueServer monta o servidor da fila
func NewQueueServer(addr, password string, db int, concurrency int) *asynq.Server {
	return asynq.NewServer(
		asynq.RedisClientOpt{Addr: addr, Password: password, DB: db},
		asynq.Config{
			Concurrency:    concurrency,
			RetryDelayFunc: retryDelay,
		},
	)
}

// NewServeMux registra os handlers de tarefas
func NewServeMux(worker *Worker) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskDispatch, worker.HandleDispatch)
	return mux
}
