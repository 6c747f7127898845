package web

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/jaminalder/codex-domino/internal/domain"
)

type templates struct {
	base  *template.Template
	game  *template.Template
	board *template.Template
	index *template.Template
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"pip": func(c domain.Cell) string {
			if c == domain.Empty {
				return ""
			}
			return strconv.Itoa(int(c))
		},
		"add": func(a, b int) int { return a + b },
	}
}

func loadTemplates() *templates {
	base := template.Must(template.New("base").Funcs(funcs()).Parse(`<!doctype html><html><head>
<meta charset="utf-8"/>
<title>Domino</title>
<script src="https://unpkg.com/htmx.org@1.9.12"></script>
<script src="https://unpkg.com/htmx.org/dist/ext/sse.js"></script>
<style>
table.grid { border-collapse: collapse; }
table.grid td { width: 2em; height: 2em; text-align: center; border: 1px solid #ddd; }
table.grid td.end { background: #ffe9a8; }
table.grid td.head { background: #b8e0ff; }
table.grid td button { width: 100%; height: 100%; border: 0; background: #eefbe9; cursor: pointer; }
.tile.selected { outline: 2px solid #2a7ae2; }
.seats .turn { font-weight: bold; }
.alert { color: #b00020; }
</style>
</head><body>{{template "content" .}}</body></html>`))
	index := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Domino</h1>
<form action="/game" method="post">
  <label>Players <select name="players">
    <option>1</option><option selected>2</option><option>3</option><option>4</option>
  </select></label>
  <label>Bots <select name="bots">
    <option>0</option><option selected>1</option><option>2</option><option>3</option><option>4</option>
  </select></label>
  <button>Create</button>
</form>`))
	game := template.Must(template.Must(base.Clone()).New("content").Parse(`<h1>Domino</h1>
<div hx-ext="sse" hx-sse="connect:/game/{{.ID}}/events">
  <div id="table" hx-sse="swap:board">{{.BoardHTML}}</div>
</div>`))
	board := template.Must(template.New("board_only").Funcs(funcs()).Parse(boardTemplate))
	return &templates{base: base, game: game, board: board, index: index}
}

func renderTemplate(t *template.Template, name string, data any) []byte {
	var buf bytes.Buffer
	if name == "" {
		_ = t.Execute(&buf, data)
	} else {
		_ = t.ExecuteTemplate(&buf, name, data)
	}
	return buf.Bytes()
}

const boardTemplate = `
<div id="board">
  <p class="status">{{.Status}}</p>
  {{if .Error}}
  <div class="alert">{{.Error}}</div>
  {{end}}
  <table class="grid">
  {{range $y, $row := .Board.Cells}}
    <tr>
    {{range $x, $c := $row}}
      <td class="{{if $.IsEnd $x $y}}end{{end}}{{if $.IsHead $x $y}} head{{end}}">
      {{if $.Selectable $x $y}}
        {{if $.Sel.Head}}
        <form hx-post="/game/{{$.ID}}/play" hx-target="#board" hx-swap="outerHTML" method="post">
          <input type="hidden" name="tile" value="{{$.Sel.Tile}}">
          <input type="hidden" name="hx" value="{{$.Sel.Head.X}}">
          <input type="hidden" name="hy" value="{{$.Sel.Head.Y}}">
          <input type="hidden" name="x" value="{{$x}}">
          <input type="hidden" name="y" value="{{$y}}">
          <button type="submit"></button>
        </form>
        {{else}}
        <button hx-get="/game/{{$.ID}}/board?tile={{$.Sel.Tile}}&hx={{$x}}&hy={{$y}}" hx-target="#board" hx-swap="outerHTML"></button>
        {{end}}
      {{else}}{{pip $c}}{{end}}
      </td>
    {{end}}
    </tr>
  {{end}}
  </table>

  <table class="seats">
  {{range .Seats}}
    <tr class="{{if eq .Index $.Turn}}turn{{end}}">
      <td>Player {{add .Index 1}}{{if .Bot}} (bot){{end}}</td>
      <td>{{.HandSize}} tiles</td>
      <td>{{.Score}} points</td>
    </tr>
  {{end}}
  </table>
  <p class="pool">Pool: {{.Pool}}</p>

  {{if .CanAct}}
  <div class="hand">
  {{range $i, $t := .Hand}}
    <button class="tile{{if eq $i $.Sel.Tile}} selected{{end}}" hx-get="/game/{{$.ID}}/board?tile={{$i}}" hx-target="#board" hx-swap="outerHTML">{{$t.A}}|{{$t.B}}</button>
  {{end}}
  </div>
  <div class="controls">
    <form hx-post="/game/{{.ID}}/draw" hx-target="#board" hx-swap="outerHTML" method="post"><button type="submit">Draw</button></form>
    <form hx-post="/game/{{.ID}}/pass" hx-target="#board" hx-swap="outerHTML" method="post"><button type="submit">Pass turn</button></form>
    {{if ge .Sel.Tile 0}}
    <button hx-get="/game/{{.ID}}/board" hx-target="#board" hx-swap="outerHTML">Clear selection</button>
    {{end}}
  </div>
  {{end}}

  <ul class="log">
  {{range .Events}}
    <li>{{.}}</li>
  {{end}}
  </ul>
</div>
`

const playerCookieName = "player_id"

func playerCookie(r *http.Request) string {
	if c, err := r.Cookie(playerCookieName); err == nil {
		return c.Value
	}
	return ""
}

// Helper to set cookie
func ensurePlayerCookie(w http.ResponseWriter, r *http.Request) string {
	if v := playerCookie(r); v != "" {
		return v
	}
	// Generate UUIDv4 for player ID
	v := uuid.NewString()
	http.SetCookie(w, &http.Cookie{Name: playerCookieName, Value: v, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	return v
}
