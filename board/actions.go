package board

import (
	"fmt"
	"strconv"

	"cardwall/core"
)

// maxTextLen clips any client-supplied string; matches the limit the
// original wire clients were written against.
const maxTextLen = 65535

// action is the closed set of inbound protocol actions. Decoding
// produces exactly one of the types below, so the dispatcher's switch
// is exhaustive over everything a client can say.
type action interface {
	name() string
}

type (
	actInitializeMe      struct{}
	actPasswordValidated struct{}
	actJoinRoom          struct{ Room string }
	actSetPassword       struct{ Password string }
	actClearPassword     struct{}

	actMoveCard struct {
		ID   string
		Left float64
		Top  float64
	}
	actCreateCard struct{ Card core.Card }
	actEditCard   struct {
		ID    string
		Value string
	}
	actDeleteCard struct{ ID string }

	actCreateColumn  struct{ Name string }
	actDeleteColumn  struct{}
	actUpdateColumns struct{ Columns []string }

	actChangeTheme struct{ Theme string }
	actChangeFont  struct{ Font core.Font }
	actSetUserName struct{ Name string }
	actAddSticker  struct {
		CardID  string
		Sticker *string
	}
	actSetBoardSize struct{ Size core.BoardSize }

	actExportTxt  struct{ Boundary float64 }
	actExportCsv  struct{ Boundary float64 }
	actExportJSON struct{ Fallback core.BoardSize }
	actImportJSON struct{ Payload map[string]any }

	actCreateRevision struct{ Fallback core.BoardSize }
	actDeleteRevision struct{ Timestamp string }
	actExportRevision struct{ Timestamp string }
)

func (actInitializeMe) name() string      { return "initializeMe" }
func (actPasswordValidated) name() string { return "passwordValidated" }
func (actJoinRoom) name() string          { return "joinRoom" }
func (actSetPassword) name() string       { return "setPassword" }
func (actClearPassword) name() string     { return "clearPassword" }
func (actMoveCard) name() string          { return "moveCard" }
func (actCreateCard) name() string        { return "createCard" }
func (actEditCard) name() string          { return "editCard" }
func (actDeleteCard) name() string        { return "deleteCard" }
func (actCreateColumn) name() string      { return "createColumn" }
func (actDeleteColumn) name() string      { return "deleteColumn" }
func (actUpdateColumns) name() string     { return "updateColumns" }
func (actChangeTheme) name() string       { return "changeTheme" }
func (actChangeFont) name() string        { return "changeFont" }
func (actSetUserName) name() string       { return "setUserName" }
func (actAddSticker) name() string        { return "addSticker" }
func (actSetBoardSize) name() string      { return "setBoardSize" }
func (actExportTxt) name() string         { return "exportTxt" }
func (actExportCsv) name() string         { return "exportCsv" }
func (actExportJSON) name() string        { return "exportJson" }
func (actImportJSON) name() string        { return "importJson" }
func (actCreateRevision) name() string    { return "createRevision" }
func (actDeleteRevision) name() string    { return "deleteRevision" }
func (actExportRevision) name() string    { return "exportRevision" }

// errUnknownAction marks action names outside the protocol; the
// dispatcher drops these with only a debug trace.
var errUnknownAction = fmt.Errorf("unknown action")

// decodeAction turns a raw {action, data} envelope into a typed,
// normalized action. Any missing or mistyped required field is an
// error; the dispatcher treats every error here as a silent drop.
func decodeAction(raw any) (action, error) {
	env, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("envelope is not an object")
	}
	name, ok := env["action"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("envelope has no action")
	}
	data := env["data"]

	switch name {
	case "initializeMe":
		return actInitializeMe{}, nil
	case "passwordValidated":
		return actPasswordValidated{}, nil

	case "joinRoom":
		room, ok := asText(data)
		if !ok || room == "" {
			return nil, fmt.Errorf("joinRoom: missing room key")
		}
		return actJoinRoom{Room: room}, nil

	case "setPassword":
		pw, ok := asText(data)
		if !ok || pw == "" {
			return nil, fmt.Errorf("setPassword: empty password")
		}
		return actSetPassword{Password: pw}, nil
	case "clearPassword":
		return actClearPassword{}, nil

	case "moveCard":
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("moveCard: data is not an object")
		}
		id, ok := asText(obj["id"])
		if !ok || id == "" {
			return nil, fmt.Errorf("moveCard: missing id")
		}
		pos, ok := obj["position"].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("moveCard: missing position")
		}
		left, lok := asNumber(pos["left"])
		top, tok := asNumber(pos["top"])
		if !lok || !tok {
			return nil, fmt.Errorf("moveCard: position is not numeric")
		}
		return actMoveCard{ID: id, Left: left, Top: top}, nil

	case "createCard":
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("createCard: data is not an object")
		}
		id, idOK := asText(obj["id"])
		text, textOK := asText(obj["text"])
		colour, colOK := asText(obj["colour"])
		x, xOK := asNumber(obj["x"])
		y, yOK := asNumber(obj["y"])
		rot, rotOK := asNumber(obj["rot"])
		if !idOK || id == "" || !textOK || !colOK || !xOK || !yOK || !rotOK {
			return nil, fmt.Errorf("createCard: incomplete card")
		}
		return actCreateCard{Card: core.Card{
			ID:     id,
			Colour: colour,
			Rot:    rot,
			X:      x,
			Y:      y,
			Text:   text,
		}}, nil

	case "editCard":
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("editCard: data is not an object")
		}
		id, idOK := asText(obj["id"])
		value, valOK := asText(obj["value"])
		if !idOK || id == "" || !valOK {
			return nil, fmt.Errorf("editCard: missing id or value")
		}
		return actEditCard{ID: id, Value: value}, nil

	case "deleteCard":
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("deleteCard: data is not an object")
		}
		id, idOK := asText(obj["id"])
		if !idOK || id == "" {
			return nil, fmt.Errorf("deleteCard: missing id")
		}
		return actDeleteCard{ID: id}, nil

	case "createColumn":
		column, ok := asText(data)
		if !ok {
			return nil, fmt.Errorf("createColumn: name is not a string")
		}
		return actCreateColumn{Name: column}, nil
	case "deleteColumn":
		return actDeleteColumn{}, nil

	case "updateColumns":
		list, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("updateColumns: data is not a sequence")
		}
		columns := make([]string, 0, len(list))
		for _, item := range list {
			column, ok := asText(item)
			if !ok {
				return nil, fmt.Errorf("updateColumns: non-string column")
			}
			columns = append(columns, column)
		}
		return actUpdateColumns{Columns: columns}, nil

	case "changeTheme":
		theme, ok := asText(data)
		if !ok {
			return nil, fmt.Errorf("changeTheme: theme is not a string")
		}
		return actChangeTheme{Theme: theme}, nil

	case "changeFont":
		font, ok := asFont(data)
		if !ok {
			return nil, fmt.Errorf("changeFont: unusable font payload")
		}
		return actChangeFont{Font: font}, nil

	case "setUserName":
		userName, ok := asText(data)
		if !ok {
			return nil, fmt.Errorf("setUserName: name is not a string")
		}
		return actSetUserName{Name: userName}, nil

	case "addSticker":
		obj, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("addSticker: data is not an object")
		}
		cardID, ok := asText(obj["cardId"])
		if !ok || cardID == "" {
			return nil, fmt.Errorf("addSticker: missing cardId")
		}
		var sticker *string
		if s, ok := asText(obj["stickerId"]); ok {
			sticker = &s
		}
		return actAddSticker{CardID: cardID, Sticker: sticker}, nil

	case "setBoardSize":
		size, ok := asSize(data)
		if !ok {
			return nil, fmt.Errorf("setBoardSize: missing dimensions")
		}
		return actSetBoardSize{Size: size}, nil

	case "exportTxt", "exportCsv":
		boundary, ok := asNumber(data)
		if !ok {
			return nil, fmt.Errorf("%s: boundary is not numeric", name)
		}
		if name == "exportTxt" {
			return actExportTxt{Boundary: boundary}, nil
		}
		return actExportCsv{Boundary: boundary}, nil

	case "exportJson":
		size, _ := asSize(data)
		return actExportJSON{Fallback: size}, nil

	case "importJson":
		payload, ok := data.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("importJson: data is not an object")
		}
		return actImportJSON{Payload: payload}, nil

	case "createRevision":
		size, _ := asSize(data)
		return actCreateRevision{Fallback: size}, nil

	case "deleteRevision", "exportRevision":
		ts, ok := asTimestamp(data)
		if !ok {
			return nil, fmt.Errorf("%s: missing timestamp", name)
		}
		if name == "deleteRevision" {
			return actDeleteRevision{Timestamp: ts}, nil
		}
		return actExportRevision{Timestamp: ts}, nil
	}

	return nil, fmt.Errorf("%w: %s", errUnknownAction, name)
}

// asText accepts a string field, clipping oversized values. Returns
// false for any non-string (including nil).
func asText(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	if len(s) > maxTextLen {
		s = s[:maxTextLen]
	}
	return s, true
}

// asNumber coerces the numeric shapes the JSON layer can hand us.
// Clients historically sent coordinates both as numbers and as
// stringified numbers.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func asSize(v any) (core.BoardSize, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return core.BoardSize{}, false
	}
	width, wok := asNumber(obj["width"])
	height, hok := asNumber(obj["height"])
	if !wok || !hok {
		return core.BoardSize{}, false
	}
	return core.BoardSize{Width: width, Height: height}, true
}

// asFont accepts either a bare family name or a {font, size} object;
// a bare name keeps the default size.
func asFont(v any) (core.Font, bool) {
	if family, ok := v.(string); ok && family != "" {
		return core.Font{Family: family, Size: core.DefaultFont.Size}, true
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return core.Font{}, false
	}
	font := core.DefaultFont
	if family, ok := asText(obj["font"]); ok && family != "" {
		font.Family = family
	}
	if size, ok := asNumber(obj["size"]); ok {
		font.Size = size
	}
	return font, true
}

// asTimestamp accepts the revision key either as the original integer
// millisecond stamp or its string form.
func asTimestamp(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case float64:
		return strconv.FormatInt(int64(t), 10), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int:
		return strconv.Itoa(t), true
	}
	return "", false
}
