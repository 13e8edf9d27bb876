package handlers

import (
	"sync"

	"thumbexpert/internal/session"
	"thumbexpert/internal/workflow"
)

// chat is the state of one conversation. mu serializes the commands of a chat.
type chat struct {
	mu   sync.Mutex
	ctrl *session.Controller
	flow *workflow.Workflow
}

type chats struct {
	mu            sync.Mutex
	m             map[int64]*chat
	newController func() *session.Controller
}

func newChats(newController func() *session.Controller) *chats {
	return &chats{
		m:             make(map[int64]*chat),
		newController: newController,
	}
}

func (cs *chats) get(chatID int64) *chat {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if c, ok := cs.m[chatID]; ok {
		return c
	}
	c := &chat{
		ctrl: cs.newController(),
		flow: workflow.New(false),
	}
	cs.m[chatID] = c
	return c
}
