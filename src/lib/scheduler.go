package lib

import (
	"log"

	"github.com/go-co-op/gocron/v2"
)

var scheduler gocron.Scheduler

func NewScheduler(s gocron.Scheduler) {
	scheduler = s
}

func GetScheduler() (gocron.Scheduler, error) {
	if scheduler != nil {
		return scheduler, nil
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		log.Printf("Error initializing Scheduler: %s\n", err.Error())
		return nil, err
	}
	scheduler = sched
	return sched, nil
}

// JobNames lists the jobs currently registered, for logging.
func JobNames() []string {
	if scheduler == nil {
		return nil
	}
	var names []string
	for _, j := range scheduler.Jobs() {
		names = append(names, j.Name())
	}
	return names
}
