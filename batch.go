package nhale

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/OhanaFS/nhale/errorx"
)

// DefaultConcurrency is the number of batch jobs run at once when none is
// given.
const DefaultConcurrency = 4

// Job is one embed or extract of a batch.
type Job struct {
	// ID identifies the job in results and logs. A random one is assigned
	// when empty.
	ID     string
	Input  string
	Output string
	// Payload is embedded by EmbedBatch and ignored by ExtractBatch.
	Payload []byte
	Config  *EmbeddingConfig
}

// JobResult is the outcome of one job, in the order the jobs were given.
type JobResult struct {
	ID string
	// Data is the extracted payload for ExtractBatch.
	Data []byte
	Err  error
}

// EmbedBatch runs Embed for every job, at most concurrency at a time. A
// failed job does not stop the others; cancelling ctx skips jobs that have
// not started yet. The returned error is only non-nil for invalid arguments.
func (e *Encoder) EmbedBatch(ctx context.Context, jobs []Job, concurrency int) ([]JobResult, error) {
	return e.batch(ctx, jobs, concurrency, func(j *Job, r *JobResult) {
		r.Err = e.Embed(j.Input, j.Output, j.Payload, j.Config)
	})
}

// ExtractBatch runs Extract for every job like EmbedBatch. If a job has an
// Output, the payload is also written there.
func (e *Encoder) ExtractBatch(ctx context.Context, jobs []Job, concurrency int) ([]JobResult, error) {
	return e.batch(ctx, jobs, concurrency, func(j *Job, r *JobResult) {
		r.Data, r.Err = e.Extract(j.Input, j.Config)
		if r.Err == nil && j.Output != "" {
			r.Err = e.writeFile(j.Output, r.Data)
		}
	})
}

func (e *Encoder) batch(ctx context.Context, jobs []Job, concurrency int,
	run func(*Job, *JobResult)) ([]JobResult, error) {
	if concurrency < 0 {
		return nil, errorx.New(errorx.InvalidInput, "concurrency must not be negative, got %d", concurrency)
	}
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]JobResult, len(jobs))
	g := &errgroup.Group{}
	g.SetLimit(concurrency)

	for i := range jobs {
		job := jobs[i]
		if job.ID == "" {
			job.ID = uuid.NewString()
		}
		r := &results[i]
		r.ID = job.ID

		if err := ctx.Err(); err != nil {
			r.Err = err
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				r.Err = err
				return nil
			}
			log := e.log.WithField("job", job.ID).WithField("input", job.Input)
			run(&job, r)
			if r.Err != nil {
				log.WithError(r.Err).Warn("batch job failed")
			} else {
				log.Debug("batch job done")
			}
			return nil
		})
	}

	_ = g.Wait()
	return results, nil
}
