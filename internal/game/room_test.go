package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDifficulty(t *testing.T) {
	assert.Equal(t, DifficultyEasy, ParseDifficulty("easy"))
	assert.Equal(t, DifficultyMedium, ParseDifficulty("Medium"))
	assert.Equal(t, DifficultyHard, ParseDifficulty("HARD"))

	// Unknown tokens fall back to easy
	assert.Equal(t, DifficultyEasy, ParseDifficulty("impossible"))
	assert.Equal(t, DifficultyEasy, ParseDifficulty(""))
}

func TestDifficultyValid(t *testing.T) {
	assert.True(t, DifficultyEasy.Valid())
	assert.True(t, DifficultyMedium.Valid())
	assert.True(t, DifficultyHard.Valid())
	assert.False(t, Difficulty("").Valid())
	assert.False(t, Difficulty("nightmare").Valid())
}

func testRoom(hostIsObserver bool) *Room {
	return &Room{
		ID:             "ABCD",
		HostID:         "host-1",
		HostIsObserver: hostIsObserver,
		Players: []Player{
			NewPlayer("host-1", "Hosty"),
			NewPlayer("p2", "Loreen"),
			NewPlayer("p3", "Måneskin"),
		},
		PlayersAtMidQuiz: []string{},
	}
}

func TestActivePlayers(t *testing.T) {
	t.Run("playing host is active", func(t *testing.T) {
		room := testRoom(false)
		assert.Len(t, room.ActivePlayers(), 3)
	})

	t.Run("observer host is excluded", func(t *testing.T) {
		room := testRoom(true)
		active := room.ActivePlayers()
		require.Len(t, active, 2)
		for _, p := range active {
			assert.NotEqual(t, "host-1", p.ID)
		}
	})
}

func TestStandings(t *testing.T) {
	room := testRoom(true)
	room.Players[1].Score = 700 // Loreen
	room.Players[2].Score = 1200

	standings := room.Standings()
	require.Len(t, standings, 2)
	assert.Equal(t, "Måneskin", standings[0].Name)
	assert.Equal(t, "Loreen", standings[1].Name)
}

func TestStandingsStableOnTies(t *testing.T) {
	room := testRoom(true)
	room.Players[1].Score = 500
	room.Players[2].Score = 500

	standings := room.Standings()
	require.Len(t, standings, 2)
	// Equal scores keep join order
	assert.Equal(t, "Loreen", standings[0].Name)
	assert.Equal(t, "Måneskin", standings[1].Name)
}

func TestWinners(t *testing.T) {
	t.Run("single winner", func(t *testing.T) {
		room := testRoom(true)
		room.Players[1].Score = 700
		room.Players[2].Score = 1200

		winners := room.Winners()
		require.Len(t, winners, 1)
		assert.Equal(t, "Måneskin", winners[0].Name)
	})

	t.Run("tie yields multiple winners", func(t *testing.T) {
		room := testRoom(true)
		room.Players[1].Score = 900
		room.Players[2].Score = 900

		winners := room.Winners()
		assert.Len(t, winners, 2)
	})

	t.Run("no players no winners", func(t *testing.T) {
		room := &Room{ID: "EMPT", HostID: "h", HostIsObserver: true,
			Players: []Player{NewPlayer("h", "Host")}}
		assert.Nil(t, room.Winners())
	})
}

func TestMidQuizTracking(t *testing.T) {
	room := testRoom(true)

	assert.False(t, room.AllPlayersAtMidQuiz())

	room.PlayersAtMidQuiz = []string{"p2"}
	assert.True(t, room.AtMidQuiz("p2"))
	assert.False(t, room.AtMidQuiz("p3"))
	assert.False(t, room.AllPlayersAtMidQuiz())

	// Only the answering players count; the observer host never marks
	room.PlayersAtMidQuiz = []string{"p2", "p3"}
	assert.True(t, room.AllPlayersAtMidQuiz())
}

func TestAllPlayersAtMidQuizEmptyRoom(t *testing.T) {
	room := &Room{ID: "EMPT", HostID: "h", HostIsObserver: true,
		Players: []Player{NewPlayer("h", "Host")}}
	assert.False(t, room.AllPlayersAtMidQuiz())
}

func TestCanStart(t *testing.T) {
	room := testRoom(false)
	assert.False(t, room.CanStart(), "no difficulty yet")

	room.Difficulty = DifficultyMedium
	assert.True(t, room.CanStart())

	room.Started = true
	assert.False(t, room.CanStart())
}

func TestValidateJoin(t *testing.T) {
	room := testRoom(false)
	assert.NoError(t, room.ValidateJoin())

	room.Started = true
	assert.ErrorIs(t, room.ValidateJoin(), ErrGameStarted)
}

func TestClone(t *testing.T) {
	room := testRoom(false)
	room.PlayersAtMidQuiz = []string{"p2"}

	clone := room.Clone()
	clone.Players[1].Score = 9999
	clone.PlayersAtMidQuiz[0] = "p3"
	clone.Difficulty = DifficultyHard

	assert.Equal(t, 0, room.Players[1].Score)
	assert.Equal(t, "p2", room.PlayersAtMidQuiz[0])
	assert.Empty(t, room.Difficulty)
}

func TestCloneNil(t *testing.T) {
	var room *Room
	assert.Nil(t, room.Clone())
}
