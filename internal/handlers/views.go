package handlers

import (
	"fmt"
	"html"
	"strings"

	"escparty/internal/game"
	"escparty/internal/session"
)

// The views are plain HTML fragments built with fmt.Sprintf. Page shells are
// rendered once per navigation; everything inside a container div is patched
// over SSE by selector.

// pageShell wraps body in the full document with the datastar bundle loaded.
func pageShell(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en" data-theme="dark">
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
	<title>%s</title>
	<link href="https://cdn.jsdelivr.net/npm/daisyui@4.12.14/dist/full.min.css" rel="stylesheet" type="text/css" />
	<script src="https://cdn.tailwindcss.com"></script>
	<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
</head>
<body class="min-h-screen bg-base-200">
	<div class="container mx-auto px-4 py-8 max-w-2xl">
%s
	</div>
</body>
</html>`, html.EscapeString(title), body)
}

// homePage renders the landing page: create, join, or play solo.
// resumeBanner is empty unless a recoverable session exists.
func homePage(resumeBanner string) string {
	body := resumeBanner + `
	<h1 class="text-4xl font-bold text-center mb-8">🎤 ESC Party Quiz</h1>

	<div class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body">
			<h2 class="card-title">Host a party</h2>
			<form method="POST" action="/room/new">
				<input type="text" name="playerName" placeholder="Your name" class="input input-bordered w-full mb-2" />
				<label class="label cursor-pointer justify-start gap-2">
					<input type="checkbox" name="hostOnly" value="true" class="checkbox" />
					<span class="label-text">Host only (watch the scoreboard, don't play)</span>
				</label>
				<button type="submit" class="btn btn-primary w-full">Create room</button>
			</form>
		</div>
	</div>

	<div class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body">
			<h2 class="card-title">Join a party</h2>
			<form method="POST" action="/join-room">
				<input type="text" name="code" placeholder="Room code" maxlength="8" class="input input-bordered w-full mb-2 uppercase" required />
				<input type="text" name="playerName" placeholder="Your name (random if empty)" class="input input-bordered w-full mb-2" />
				<button type="submit" class="btn btn-secondary w-full">Join room</button>
			</form>
		</div>
	</div>

	<div class="card bg-base-100 shadow-xl">
		<div class="card-body">
			<h2 class="card-title">Play solo</h2>
			<form method="GET" action="/solo">
				<select name="difficulty" class="select select-bordered w-full mb-2">
					<option value="easy">Beginner</option>
					<option value="medium">Intermediate</option>
					<option value="hard">Advanced</option>
				</select>
				<button type="submit" class="btn btn-accent w-full">Start quiz</button>
			</form>
		</div>
	</div>`
	return pageShell("ESC Party Quiz", body)
}

// resumeBanner offers to pick up a recoverable session.
func resumeBanner(description string) string {
	return fmt.Sprintf(`
	<div class="alert alert-info mb-4">
		<span>%s</span>
		<a href="/resume" class="btn btn-sm btn-primary">Resume</a>
	</div>`, html.EscapeString(description))
}

// joinFormPage asks for a name before entering a room from a shared link.
func joinFormPage(code, errMsg string) string {
	alert := ""
	if errMsg != "" {
		alert = fmt.Sprintf(`<div class="alert alert-error mb-4"><span>%s</span></div>`, html.EscapeString(errMsg))
	}
	body := fmt.Sprintf(`%s
	<div class="card bg-base-100 shadow-xl">
		<div class="card-body">
			<h2 class="card-title">Join room %s</h2>
			<form method="POST" action="/join-room">
				<input type="hidden" name="code" value="%s" />
				<input type="text" name="playerName" placeholder="Your name (random if empty)" class="input input-bordered w-full mb-2" />
				<button type="submit" class="btn btn-primary w-full">Join</button>
			</form>
		</div>
	</div>`, alert, html.EscapeString(code), html.EscapeString(code))
	return pageShell("Join "+code, body)
}

// lobbyPage is the lobby shell; #lobby-content is patched over SSE.
func lobbyPage(room *game.Room, viewerID string, isHost bool) string {
	body := fmt.Sprintf(`
	<div id="lobby-container" data-on-load="@get('/sse/lobby/%s')">
		%s
	</div>`, room.ID, lobbyContent(room, viewerID, isHost))
	return pageShell("Lobby "+room.ID, body)
}

// lobbyContent is the patched lobby body: room code, player list, and for the
// host the difficulty selector, QR code, and start button.
func lobbyContent(room *game.Room, viewerID string, isHost bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, `<div id="lobby-content">
	<h1 class="text-3xl font-bold text-center mb-2">Room <span class="font-mono">%s</span></h1>`, html.EscapeString(room.ID))

	if isHost {
		b.WriteString(`
	<div class="flex justify-center mb-4">
		<img data-show="$qrCode !== ''" data-attr-src="$qrCode" alt="Join QR code" class="w-40 h-40" data-signals-qr-code="''" />
	</div>`)
	}

	b.WriteString(playerListCard(room, viewerID))

	if isHost {
		fmt.Fprintf(&b, `
	<div class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body">
			<h2 class="card-title">Difficulty</h2>
			<div class="join w-full">
				%s%s%s
			</div>
		</div>
	</div>`,
			difficultyButton(room, game.DifficultyEasy, "Beginner"),
			difficultyButton(room, game.DifficultyMedium, "Intermediate"),
			difficultyButton(room, game.DifficultyHard, "Advanced"))

		startClass := "btn btn-primary w-full"
		disabled := ""
		if !room.CanStart() {
			disabled = " disabled"
		}
		fmt.Fprintf(&b, `
	<button class="%s" data-on-click="@post('/room/%s/start')"%s>Start game</button>
	<div id="error-container"></div>`, startClass, room.ID, disabled)
	} else {
		b.WriteString(`
	<p class="text-center opacity-70">Waiting for the host to start the game…</p>`)
	}

	b.WriteString(`
</div>`)
	return b.String()
}

func difficultyButton(room *game.Room, d game.Difficulty, label string) string {
	class := "btn join-item flex-1"
	if room.Difficulty == d {
		class += " btn-active btn-primary"
	}
	return fmt.Sprintf(`<button class="%s" data-on-click="@post('/room/%s/difficulty?difficulty=%s')">%s</button>`,
		class, room.ID, d, label)
}

// playerListCard lists the answering players; the observer host is not shown.
func playerListCard(room *game.Room, viewerID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
	<div id="player-list-card" class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body">
			<h2 class="card-title">Players (%d)</h2>
			<ul class="menu">`, len(room.ActivePlayers()))

	for _, p := range room.ActivePlayers() {
		marker := ""
		if p.ID == room.HostID {
			marker = " 👑"
		}
		if p.ID == viewerID {
			marker += " (you)"
		}
		fmt.Fprintf(&b, `
				<li><span>%s%s</span></li>`, html.EscapeString(p.Name), marker)
	}

	b.WriteString(`
			</ul>
		</div>
	</div>`)
	return b.String()
}

// quizPage is the quiz shell; #quiz-container is patched over SSE.
func quizPage(title, streamPath string) string {
	body := fmt.Sprintf(`
	<div id="quiz-container" data-on-load="@get('%s')" data-signals-remaining="0">
		<div class="flex justify-center py-16"><span class="loading loading-spinner loading-lg"></span></div>
	</div>`, streamPath)
	return pageShell(title, body)
}

// questionCard renders the answering view. The countdown number is bound to
// the $remaining signal so ticks only need a signal patch, not a re-render.
func questionCard(v runView, actionBase string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `<div id="quiz-container">
	<div class="flex justify-between items-center mb-4">
		<span class="badge badge-lg">Question %d / %d</span>
		<span class="badge badge-lg badge-primary">Score: %d</span>
		<span class="badge badge-lg badge-warning"><span data-text="$remaining"></span>s</span>
	</div>
	<div class="card bg-base-100 shadow-xl">
		<div class="card-body">
			<h2 class="card-title mb-4">%s</h2>`,
		v.Index+1, v.Total, v.Score, html.EscapeString(v.Question.Question))

	for _, opt := range v.Question.Options {
		class := "btn btn-outline w-full mb-2 justify-start normal-case"
		if opt == v.Selected {
			class = "btn btn-primary w-full mb-2 justify-start normal-case"
		}
		fmt.Fprintf(&b, `
			<button class="%s" data-on-click="@post('%s/select?option=%s')">%s</button>`,
			class, actionBase, urlQueryEscape(opt), html.EscapeString(opt))
	}

	submitDisabled := ""
	if v.Selected == "" {
		submitDisabled = " disabled"
	}
	fmt.Fprintf(&b, `
			<button class="btn btn-success w-full mt-4" data-on-click="@post('%s/submit')"%s>Lock it in</button>
		</div>
	</div>
</div>`, actionBase, submitDisabled)
	return b.String()
}

// feedbackCard reveals the correct answer and the points awarded.
func feedbackCard(v runView) string {
	var verdict, detail string
	switch {
	case v.TimedOut:
		verdict = `<div class="alert alert-warning"><span>⏰ Time's up!</span></div>`
	case v.LastCorrect:
		verdict = fmt.Sprintf(`<div class="alert alert-success"><span>✅ Correct! +%d points</span></div>`, v.LastAwarded)
	default:
		verdict = `<div class="alert alert-error"><span>❌ Not this time</span></div>`
	}
	detail = fmt.Sprintf(`<p class="mt-4">The answer was <strong>%s</strong>.</p>`, html.EscapeString(v.Question.CorrectAnswer))

	return fmt.Sprintf(`<div id="quiz-container">
	<div class="flex justify-between items-center mb-4">
		<span class="badge badge-lg">Question %d / %d</span>
		<span class="badge badge-lg badge-primary">Score: %d</span>
	</div>
	<div class="card bg-base-100 shadow-xl">
		<div class="card-body">
			<h2 class="card-title mb-2">%s</h2>
			%s
			%s
		</div>
	</div>
</div>`, v.Index+1, v.Total, v.Score, html.EscapeString(v.Question.Question), verdict, detail)
}

// checkpointCard renders the mid-quiz scoreboard. When continuePath is set
// the viewer controls advancement (solo player or active host); everyone
// else waits for the host's signal.
func checkpointCard(v runView, room *game.Room, continuePath string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `<div id="quiz-container">
	<h1 class="text-3xl font-bold text-center mb-4">🏁 Halfway scoreboard</h1>
	<div class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body">
			<p class="text-center text-xl mb-2">Your score so far: <strong>%d</strong></p>`, v.Score)

	if room != nil {
		b.WriteString(standingsTable(room, true))
	}
	b.WriteString(`
		</div>
	</div>`)

	if continuePath != "" {
		fmt.Fprintf(&b, `
	<button class="btn btn-primary w-full" data-on-click="@post('%s')">Continue</button>`, continuePath)
	} else {
		b.WriteString(`
	<p class="text-center opacity-70"><span class="loading loading-dots loading-sm"></span> Waiting for the host to continue…</p>`)
	}

	b.WriteString(`
</div>`)
	return b.String()
}

// standingsTable renders the score-ordered player table. When withReadiness
// is set each row carries the checkpoint checkmark.
func standingsTable(room *game.Room, withReadiness bool) string {
	var b strings.Builder
	b.WriteString(`
			<table class="table">
				<tbody>`)
	for i, p := range room.Standings() {
		ready := ""
		if withReadiness && room.AtMidQuiz(p.ID) {
			ready = " ✓"
		}
		fmt.Fprintf(&b, `
					<tr><td>%d.</td><td>%s%s</td><td class="text-right font-mono">%d</td></tr>`,
			i+1, html.EscapeString(p.Name), ready, p.Score)
	}
	b.WriteString(`
				</tbody>
			</table>`)
	return b.String()
}

// resultsPage is the multiplayer final scoreboard.
func resultsPage(room *game.Room) string {
	var banner string
	winners := room.Winners()
	switch {
	case len(winners) == 1:
		banner = fmt.Sprintf(`<div class="alert alert-success mb-4"><span>🏆 %s wins!</span></div>`,
			html.EscapeString(winners[0].Name))
	case len(winners) > 1:
		names := make([]string, len(winners))
		for i, p := range winners {
			names[i] = html.EscapeString(p.Name)
		}
		banner = fmt.Sprintf(`<div class="alert alert-success mb-4"><span>🏆 It's a tie: %s!</span></div>`,
			strings.Join(names, " and "))
	}

	body := fmt.Sprintf(`
	<h1 class="text-3xl font-bold text-center mb-4">Final results</h1>
	%s
	<div class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body">%s</div>
	</div>
	<a href="/" class="btn btn-primary w-full">Back home</a>`, banner, standingsTable(room, false))
	return pageShell("Results "+room.ID, body)
}

// soloResultsPage shows the final score plus the local score history.
func soloResultsPage(score, total int, d game.Difficulty, records []session.ScoreRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, `
	<h1 class="text-3xl font-bold text-center mb-4">Quiz complete!</h1>
	<div class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body text-center">
			<p class="text-xl">You scored <strong>%d</strong> points over %d questions on %s.</p>
		</div>
	</div>`, score, total, html.EscapeString(string(d)))

	if len(records) > 0 {
		b.WriteString(`
	<div class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body">
			<h2 class="card-title">Past scores</h2>
			<table class="table">
				<thead><tr><th>Date</th><th>Difficulty</th><th class="text-right">Score</th></tr></thead>
				<tbody>`)
		for _, rec := range records {
			fmt.Fprintf(&b, `
					<tr><td>%s</td><td>%s</td><td class="text-right font-mono">%d / %d</td></tr>`,
				rec.Date.Format("2006-01-02"), html.EscapeString(string(rec.Difficulty)), rec.Score, rec.Total)
		}
		b.WriteString(`
				</tbody>
			</table>
		</div>
	</div>`)
	}

	b.WriteString(`
	<a href="/" class="btn btn-primary w-full">Back home</a>`)
	return pageShell("Results", b.String())
}

// observerPage is the observer host's dashboard shell.
func observerPage(code string) string {
	body := fmt.Sprintf(`
	<div id="observer-container" data-on-load="@get('/sse/observer/%s')" data-signals-qr-code="''">
		<div id="observer-board">
			<div class="flex justify-center py-16"><span class="loading loading-spinner loading-lg"></span></div>
		</div>
	</div>`, code)
	return pageShell("Host dashboard "+code, body)
}

// observerBoard is the patched dashboard body: live standings with checkpoint
// readiness and the continue button. The button unlocks when every player has
// reached the checkpoint but stays clickable as an override.
func observerBoard(room *game.Room) string {
	var b strings.Builder

	fmt.Fprintf(&b, `<div id="observer-board">
	<h1 class="text-3xl font-bold text-center mb-2">Room <span class="font-mono">%s</span></h1>`,
		html.EscapeString(room.ID))

	if !room.Started {
		b.WriteString(`
	<div class="flex justify-center mb-4">
		<img data-show="$qrCode !== ''" data-attr-src="$qrCode" alt="Join QR code" class="w-40 h-40" />
	</div>`)
		b.WriteString(playerListCard(room, ""))
		fmt.Fprintf(&b, `
	<div class="join w-full mb-4">
		%s%s%s
	</div>`,
			difficultyButton(room, game.DifficultyEasy, "Beginner"),
			difficultyButton(room, game.DifficultyMedium, "Intermediate"),
			difficultyButton(room, game.DifficultyHard, "Advanced"))

		disabled := ""
		if !room.CanStart() {
			disabled = " disabled"
		}
		fmt.Fprintf(&b, `
	<button class="btn btn-primary w-full" data-on-click="@post('/room/%s/start')"%s>Start game</button>
	<div id="error-container"></div>`, room.ID, disabled)
	} else {
		readyCount := 0
		for _, p := range room.ActivePlayers() {
			if room.AtMidQuiz(p.ID) {
				readyCount++
			}
		}
		fmt.Fprintf(&b, `
	<div class="card bg-base-100 shadow-xl mb-4">
		<div class="card-body">
			<h2 class="card-title">Live standings</h2>%s
		</div>
	</div>
	<p class="text-center mb-2">%d of %d players at the checkpoint</p>`,
			standingsTable(room, true), readyCount, len(room.ActivePlayers()))

		continueClass := "btn btn-warning w-full"
		if room.AllPlayersAtMidQuiz() {
			continueClass = "btn btn-success w-full"
		}
		fmt.Fprintf(&b, `
	<button class="%s" data-on-click="@post('/room/%s/continue')">Continue the quiz</button>`,
			continueClass, room.ID)
	}

	b.WriteString(`
</div>`)
	return b.String()
}

// errorAlert renders an inline error fragment for #error-container.
func errorAlert(msg string) string {
	return fmt.Sprintf(`<div id="error-container"><div class="alert alert-error mt-4"><span>%s</span></div></div>`,
		html.EscapeString(msg))
}

// vanishedScript redirects a client whose room disappeared, after a short
// pause so the message is readable.
func vanishedScript(delayMs int64) string {
	return fmt.Sprintf(`setTimeout(function(){ window.location.href = '/'; }, %d)`, delayMs)
}

// urlQueryEscape escapes the characters that would break an option value
// inside a single-quoted datastar action URL.
func urlQueryEscape(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	"%", "%25",
	"&", "%26",
	"+", "%2B",
	"#", "%23",
	"=", "%3D",
	" ", "%20",
	"'", "%27",
	`"`, "%22",
)
