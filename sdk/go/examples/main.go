package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"time"

	"VoxelBench/sdk/go/voxelbench"
)

func main() {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/tasks", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(voxelbench.Task{
				ID:           "task-demo",
				TargetString: "HI",
				Status:       "pending",
			})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/v1/tasks/task-demo", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(voxelbench.Task{
			ID:           "task-demo",
			TargetString: "HI",
			Status:       "succeeded",
			Result: &voxelbench.ExecutionResult{
				Metrics: voxelbench.Metrics{
					ShapeOverlap: 0.92,
					Components:   1,
					Adjacency:    0.75,
					Mean:         0.89,
				},
			},
		})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := voxelbench.NewClient(srv.URL, srv.Client())
	if err != nil {
		panic(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	created, err := client.SubmitTask(ctx, voxelbench.TaskSubmission{TargetString: "HI", ModelID: "demo-model"})
	if err != nil {
		panic(err)
	}
	fmt.Printf("submitted task %s (status=%s)\n", created.ID, created.Status)

	detail, err := client.WaitForTask(ctx, created.ID, 100*time.Millisecond)
	if err != nil {
		panic(err)
	}
	fmt.Printf("task %s finished with mean score %.2f\n", detail.ID, detail.Result.Metrics.Mean)
}
