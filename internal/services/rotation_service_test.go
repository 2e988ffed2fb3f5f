package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestNextForCycle(t *testing.T) {
	schedule := []scheduleEntry{
		{UserID: "a", UserName: "Ama", Position: 0},
		{UserID: "b", UserName: "Bene", Position: 1},
		{UserID: "c", UserName: "Cofie", Position: 2},
	}

	t.Run("walks join order then wraps", func(t *testing.T) {
		expected := []string{"a", "b", "c", "a", "b", "c", "a"}
		for cycle := 1; cycle <= len(expected); cycle++ {
			entry, err := NextForCycle(schedule, cycle)
			assert.NoError(t, err)
			assert.Equal(t, expected[cycle-1], entry.UserID, "cycle %d", cycle)
		}
	})

	t.Run("any cycle number is a valid restart point", func(t *testing.T) {
		entry, err := NextForCycle(schedule, 47)
		assert.NoError(t, err)
		assert.Equal(t, "b", entry.UserID)
	})

	t.Run("cycle numbers below one clamp to the first recipient", func(t *testing.T) {
		entry, err := NextForCycle(schedule, 0)
		assert.NoError(t, err)
		assert.Equal(t, "a", entry.UserID)
	})

	t.Run("empty schedule", func(t *testing.T) {
		_, err := NextForCycle(nil, 1)
		assert.ErrorIs(t, err, ErrEmptySchedule)
	})

	t.Run("single member receives every cycle", func(t *testing.T) {
		solo := schedule[:1]
		for cycle := 1; cycle <= 3; cycle++ {
			entry, err := NextForCycle(solo, cycle)
			assert.NoError(t, err)
			assert.Equal(t, "a", entry.UserID)
		}
	})
}

func TestRotationService_Next(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRotationService(db)

	t.Run("resolves the current recipient", func(t *testing.T) {
		mock.ExpectQuery("SELECT cycle_number FROM groups WHERE id = \\$1").
			WithArgs("group1").
			WillReturnRows(sqlmock.NewRows([]string{"cycle_number"}).AddRow(2))

		mock.ExpectQuery("SELECT m.user_id, u.name, m.position FROM group_members m").
			WithArgs("group1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "position"}).
				AddRow("a", "Ama", 0).
				AddRow("b", "Bene", 1).
				AddRow("c", "Cofie", 2))

		entry, cycle, err := service.Next("group1")
		assert.NoError(t, err)
		assert.Equal(t, 2, cycle)
		assert.Equal(t, "b", entry.UserID)
		assert.Equal(t, "Bene", entry.UserName)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("suspended members are skipped by the schedule query", func(t *testing.T) {
		mock.ExpectQuery("SELECT cycle_number FROM groups WHERE id = \\$1").
			WithArgs("group1").
			WillReturnRows(sqlmock.NewRows([]string{"cycle_number"}).AddRow(2))

		// The WHERE m.status = 'ACTIVE' filter drops Bene; the cycle
		// index now lands on the next active member.
		mock.ExpectQuery("SELECT m.user_id, u.name, m.position FROM group_members m").
			WithArgs("group1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "position"}).
				AddRow("a", "Ama", 0).
				AddRow("c", "Cofie", 2))

		entry, _, err := service.Next("group1")
		assert.NoError(t, err)
		assert.Equal(t, "c", entry.UserID)
	})

	t.Run("group with no active members", func(t *testing.T) {
		mock.ExpectQuery("SELECT cycle_number FROM groups WHERE id = \\$1").
			WithArgs("group2").
			WillReturnRows(sqlmock.NewRows([]string{"cycle_number"}).AddRow(1))

		mock.ExpectQuery("SELECT m.user_id, u.name, m.position FROM group_members m").
			WithArgs("group2").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "name", "position"}))

		_, _, err := service.Next("group2")
		assert.ErrorIs(t, err, ErrEmptySchedule)
	})
}
