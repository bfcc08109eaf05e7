package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/lorrc/taskboard-backend/internal/core/domain"
	"github.com/lorrc/taskboard-backend/internal/core/mocks"
	"github.com/lorrc/taskboard-backend/internal/core/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_TaskUpdated(t *testing.T) {
	bus := mocks.NewRecordingBus()
	pub := services.NewPublisher(bus, "node-a", nil)

	pub.TaskUpdated(context.Background(), "team-1", "org-1", domain.TaskUpdatedPayload{
		ID:     "task-1",
		Status: domain.TaskStatusDone,
	})

	envs := bus.Published()
	require.Len(t, envs, 2)
	assert.Equal(t, "team:team-1", envs[0].Room)
	assert.Equal(t, "org:org-1", envs[1].Room)

	for _, env := range envs {
		assert.Equal(t, "node-a", env.Origin)
		assert.Empty(t, env.Exclude)
		assert.Equal(t, domain.EventTaskUpdated, env.Event.Type)
		assert.JSONEq(t, `{"id":"task-1","teamId":"team-1","organizationId":"org-1","status":"DONE"}`, string(env.Event.Payload))
	}
	assert.Equal(t, envs[0].Event.Payload, envs[1].Event.Payload)
}

func TestPublisher_SkipsMissingRooms(t *testing.T) {
	t.Run("no organization", func(t *testing.T) {
		bus := mocks.NewRecordingBus()
		pub := services.NewPublisher(bus, "node-a", nil)

		pub.TaskCreated(context.Background(), "team-1", "", domain.TaskCreatedPayload{ID: "task-1"})

		envs := bus.Published()
		require.Len(t, envs, 1)
		assert.Equal(t, "team:team-1", envs[0].Room)
	})

	t.Run("nothing to address", func(t *testing.T) {
		bus := mocks.NewRecordingBus()
		pub := services.NewPublisher(bus, "node-a", nil)

		pub.TaskDeleted(context.Background(), "", "", domain.TaskDeletedPayload{ID: "task-1"})

		assert.Empty(t, bus.Published())
	})
}

func TestPublisher_EpicUpdated(t *testing.T) {
	t.Run("team epic reaches organization and team rooms", func(t *testing.T) {
		bus := mocks.NewRecordingBus()
		pub := services.NewPublisher(bus, "node-a", nil)
		team := "t-1"

		pub.EpicUpdated(context.Background(), "o-1", domain.EpicUpdatedPayload{ID: "e1", TeamID: &team})

		envs := bus.Published()
		require.Len(t, envs, 2)
		assert.Equal(t, "org:o-1", envs[0].Room)
		assert.Equal(t, "team:t-1", envs[1].Room)
		for _, env := range envs {
			assert.Equal(t, domain.EventEpicUpdated, env.Event.Type)
			assert.JSONEq(t, `{"id":"e1","teamId":"t-1","organizationId":"o-1"}`, string(env.Event.Payload))
		}
		assert.Equal(t, envs[0].Event.Payload, envs[1].Event.Payload)
	})

	t.Run("epic without team reaches organization room only", func(t *testing.T) {
		bus := mocks.NewRecordingBus()
		pub := services.NewPublisher(bus, "node-a", nil)

		pub.EpicUpdated(context.Background(), "o-1", domain.EpicUpdatedPayload{ID: "e1"})

		envs := bus.Published()
		require.Len(t, envs, 1)
		assert.Equal(t, "org:o-1", envs[0].Room)
	})

	t.Run("empty team id is ignored", func(t *testing.T) {
		bus := mocks.NewRecordingBus()
		pub := services.NewPublisher(bus, "node-a", nil)
		empty := ""

		pub.EpicUpdated(context.Background(), "o-1", domain.EpicUpdatedPayload{ID: "e1", TeamID: &empty})

		envs := bus.Published()
		require.Len(t, envs, 1)
		assert.Equal(t, "org:o-1", envs[0].Room)
	})
}

func TestPublisher_Inert(t *testing.T) {
	t.Run("nil publisher", func(t *testing.T) {
		var pub *services.Publisher
		assert.NotPanics(t, func() {
			pub.TaskUpdated(context.Background(), "t", "o", domain.TaskUpdatedPayload{ID: "x"})
		})
	})

	t.Run("nil bus", func(t *testing.T) {
		pub := services.NewPublisher(nil, "node-a", nil)
		assert.NotPanics(t, func() {
			pub.EpicUpdated(context.Background(), "o", domain.EpicUpdatedPayload{ID: "e"})
		})
	})

	t.Run("bus errors are swallowed", func(t *testing.T) {
		bus := mocks.NewRecordingBus()
		bus.Err = errors.New("unreachable")
		pub := services.NewPublisher(bus, "node-a", nil)

		assert.NotPanics(t, func() {
			pub.TaskDeleted(context.Background(), "t", "o", domain.TaskDeletedPayload{ID: "x"})
		})
		assert.Len(t, bus.Published(), 2)
	})
}
