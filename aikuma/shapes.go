package aikuma

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/langtech/transcriber/waveform"
)

// ShapeOptions controls envelope generation.
type ShapeOptions struct {
	Workers     int
	MaxWidthPx  float64
	MinWindow   float64
	MaxChannels int
	Force       bool
}

// ShapeReport lists the outcome per recording.
type ShapeReport struct {
	Generated []string
	Skipped   []string
	Failed    map[string]error
}

// Job is a unit of work run by the pool.
type Job interface {
	ID() string
	Execute(ctx context.Context) error
}

type shapeJob struct {
	id   string
	wav  string
	out  string
	opts ShapeOptions
}

func (j *shapeJob) ID() string { return j.id }

func (j *shapeJob) Execute(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(j.wav)
	if err != nil {
		return err
	}
	defer f.Close()
	shape, err := waveform.ShapeFromWAV(f, j.opts.MaxWidthPx, j.opts.MinWindow, j.opts.MaxChannels)
	if err != nil {
		return err
	}
	tmp := j.out + ".tmp"
	if err := os.WriteFile(tmp, shape, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, j.out)
}

// RunJobs executes jobs on n workers and returns the error of every failed
// job keyed by job id. Jobs not yet started when ctx is cancelled fail with
// the context error.
func RunJobs(ctx context.Context, n int, jobs []Job, log logrus.FieldLogger) map[string]error {
	if n < 1 {
		n = 1
	}
	queue := make(chan Job)
	var (
		mu     sync.Mutex
		failed = map[string]error{}
		wg     sync.WaitGroup
	)
	for w := 1; w <= n; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for job := range queue {
				l := log.WithFields(logrus.Fields{"worker": worker, "job": job.ID()})
				if err := job.Execute(ctx); err != nil {
					l.WithError(err).Warn("job failed")
					mu.Lock()
					failed[job.ID()] = err
					mu.Unlock()
					continue
				}
				l.Debug("job done")
			}
		}(w)
	}
	for i, job := range jobs {
		select {
		case queue <- job:
			continue
		case <-ctx.Done():
		}
		mu.Lock()
		for _, rest := range jobs[i:] {
			failed[rest.ID()] = ctx.Err()
		}
		mu.Unlock()
		break
	}
	close(queue)
	wg.Wait()
	return failed
}

// GenerateShapes writes the missing .shape file of every recording in ix
// that has a .wav file.
func GenerateShapes(ctx context.Context, l Layout, ix *Index, opts ShapeOptions, log logrus.FieldLogger) (*ShapeReport, error) {
	if opts.MaxWidthPx <= 0 || opts.MinWindow <= 0 {
		return nil, fmt.Errorf("shape options: max width %v and min window %v must be positive", opts.MaxWidthPx, opts.MinWindow)
	}
	var ids []string
	for id := range ix.Originals {
		ids = append(ids, id)
	}
	for id := range ix.Commentaries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rep := &ShapeReport{Failed: map[string]error{}}
	var jobs []Job
	for _, id := range ids {
		wav := l.RecordingPath(id, ExtWAV)
		out := l.RecordingPath(id, ExtShape)
		if _, err := os.Stat(wav); errors.Is(err, fs.ErrNotExist) {
			rep.Skipped = append(rep.Skipped, id)
			continue
		}
		if _, err := os.Stat(out); err == nil && !opts.Force {
			rep.Skipped = append(rep.Skipped, id)
			continue
		}
		jobs = append(jobs, &shapeJob{id: id, wav: wav, out: out, opts: opts})
	}
	log.WithFields(logrus.Fields{"jobs": len(jobs), "workers": opts.Workers}).Info("generating shapes")

	rep.Failed = RunJobs(ctx, opts.Workers, jobs, log)
	for _, j := range jobs {
		if _, bad := rep.Failed[j.ID()]; !bad {
			rep.Generated = append(rep.Generated, j.ID())
		}
	}
	return rep, ctx.Err()
}
