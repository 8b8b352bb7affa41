package train

import (
	"sync"
	"sync/atomic"

	"github.com/gazelab/gazequad/internal/gaze"
)

type Evaluation struct {
	Samples int
	Cost    float64
	Error   float64
}

// Evaluate measures mean cost and misclassification rate using one model
// copy per thread.
func Evaluate(model *gaze.Model, samples []gaze.Sample, threads int) Evaluation {
	return evaluate(samples, threadModels(model, threads))
}

func threadModels(mainModel *gaze.Model, threads int) []*gaze.Model {
	if threads < 1 {
		threads = 1
	}
	var models = make([]*gaze.Model, threads)
	models[0] = mainModel
	for i := 1; i < len(models); i++ {
		models[i] = mainModel.ThreadCopy()
	}
	return models
}

func evaluate(samples []gaze.Sample, models []*gaze.Model) Evaluation {
	if len(samples) == 0 {
		return Evaluation{}
	}
	var index int32 = -1
	var wg = &sync.WaitGroup{}
	var totalCost float64
	var mistakes int
	var mu = &sync.Mutex{}
	for i := range models {
		wg.Add(1)
		go func(m *gaze.Model) {
			defer wg.Done()
			var localCost float64
			var localMistakes int
			for {
				var i = int(atomic.AddInt32(&index, 1))
				if i >= len(samples) {
					break
				}
				var sample = &samples[i]
				localCost += m.CalcCost(sample)
				if m.Classify(sample.Input) != sample.Label {
					localMistakes++
				}
			}
			mu.Lock()
			totalCost += localCost
			mistakes += localMistakes
			mu.Unlock()
		}(models[i])
	}
	wg.Wait()
	return Evaluation{
		Samples: len(samples),
		Cost:    totalCost / float64(len(samples)),
		Error:   float64(mistakes) / float64(len(samples)),
	}
}
