package musicgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/lunarsound/longwave/internal/audio"
	"github.com/lunarsound/longwave/internal/extend"
)

// Client communicates with the music generation inference backend over its
// REST API. It implements extend.Processor, so it can be used directly for
// short clips or wrapped by extend.ExtendedProcessor for long ones.
//
// A Client is safe for concurrent use; the backend serializes GPU work on its
// side.
type Client struct {
	apiURL       string
	apiKey       string
	sampleRate   int
	pollInterval time.Duration
	http         *http.Client
}

// NewClient creates a backend API client for the given sample rate.
func NewClient(apiURL, apiKey string, sampleRate int) *Client {
	return &Client{
		apiURL:       apiURL,
		apiKey:       apiKey,
		sampleRate:   sampleRate,
		pollInterval: 2 * time.Second,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

type generateRequest struct {
	Prompt     string `json:"prompt"`
	Duration   int    `json:"duration"`
	SampleRate int    `json:"sample_rate"`
	Format     string `json:"format"`
}

type generateResp struct {
	TaskID string `json:"task_id"`
	Error  string `json:"error"`
}

type taskStatus struct {
	TaskID   string  `json:"task_id"`
	Status   int     `json:"status"` // 0=running, 1=done, 2=failed
	Progress float64 `json:"progress"`
	Error    string  `json:"error"`
}

// WaitForHealthy blocks until the backend responds to health checks.
func (c *Client) WaitForHealthy(ctx context.Context) error {
	log.Println("Waiting for generation backend to be ready...")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		resp, err := c.http.Get(c.apiURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			log.Println("Generation backend is healthy")
			return nil
		}
		if resp != nil {
			resp.Body.Close()
		}

		log.Println("Backend not ready, retrying in 5s...")
		time.Sleep(5 * time.Second)
	}
}

// Process implements extend.Processor: it submits a generation task, polls
// until completion while reporting (elapsed, total) progress in seconds, and
// fetches the synthesized samples. When a progress callback returns true the
// task is cancelled best-effort and ErrAborted is returned.
func (c *Client) Process(prompt string, secs int, onProgress extend.ProgressFunc) ([]float32, error) {
	taskID, err := c.submit(prompt, secs)
	if err != nil {
		return nil, err
	}

	for {
		task, err := c.poll(taskID)
		if err != nil {
			log.Printf("Poll error for task %s: %v, retrying...", taskID, err)
			time.Sleep(c.pollInterval)
			continue
		}

		switch task.Status {
		case 1: // done
			if onProgress != nil {
				onProgress(float64(secs), float64(secs))
			}
			return c.fetchAudio(taskID)
		case 2: // failed
			return nil, fmt.Errorf("task %s: generation failed: %s", taskID, task.Error)
		default: // still running
			if onProgress != nil && onProgress(task.Progress*float64(secs), float64(secs)) {
				c.cancel(taskID)
				return nil, fmt.Errorf("task %s: %w", taskID, extend.ErrAborted)
			}
			time.Sleep(c.pollInterval)
		}
	}
}

// submit sends the generation request and returns the task ID.
func (c *Client) submit(prompt string, secs int) (string, error) {
	body, err := json.Marshal(generateRequest{
		Prompt:     prompt,
		Duration:   secs,
		SampleRate: c.sampleRate,
		Format:     "pcm_f32le",
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", c.apiURL+"/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	defer resp.Body.Close()

	var result generateResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("backend error (status %d): %s", resp.StatusCode, result.Error)
	}
	if result.TaskID == "" {
		return "", fmt.Errorf("backend returned no task ID")
	}
	return result.TaskID, nil
}

func (c *Client) poll(taskID string) (*taskStatus, error) {
	req, err := http.NewRequest("GET", c.apiURL+"/tasks/"+taskID, nil)
	if err != nil {
		return nil, fmt.Errorf("create poll request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var task taskStatus
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &task, nil
}

// fetchAudio downloads the raw float32 PCM payload for a finished task.
func (c *Client) fetchAudio(taskID string) ([]float32, error) {
	req, err := http.NewRequest("GET", c.apiURL+"/tasks/"+taskID+"/audio", nil)
	if err != nil {
		return nil, fmt.Errorf("create audio request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch audio: backend status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio payload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("task %s: empty audio payload", taskID)
	}
	return audio.BytesToFloat32(data), nil
}

// cancel asks the backend to stop a running task. Best effort: the run is
// already being abandoned, a cancel failure only wastes backend cycles.
func (c *Client) cancel(taskID string) {
	req, err := http.NewRequest("POST", c.apiURL+"/tasks/"+taskID+"/cancel", nil)
	if err != nil {
		return
	}
	c.authorize(req)
	if resp, err := c.http.Do(req); err == nil {
		resp.Body.Close()
	} else {
		log.Printf("Cancel failed for task %s: %v", taskID, err)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
