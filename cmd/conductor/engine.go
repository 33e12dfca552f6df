package main

import (
	"github.com/conductorhq/conductor/internal/agent"
	"github.com/conductorhq/conductor/internal/classifier"
	"github.com/conductorhq/conductor/internal/queue"
)

// newEngine builds a queue engine over the open store. driver may be nil
// for commands that only read or mutate persisted state.
func newEngine(driver agent.Driver) *queue.Engine {
	return queue.New(queue.Config{
		ProjectID:   cfg.ProjectID,
		ProjectPath: cfg.ProjectPath,
	}, store, driver, classifier.New(store))
}
