package planner

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/contentpilot/pkg/models"
)

// decodeItems builds draft schedule items from the model's proposal. Status and
// media are never taken from the model; missing or repeated ids are replaced.
// Dates and times are stored in canonical form; an unreadable time is dropped
// so the noon default applies.
func decodeItems(raw any) []models.ScheduleItem {
	list, _ := raw.([]any)
	items := make([]models.ScheduleItem, 0, len(list))
	seen := make(map[string]bool, len(list))

	for _, el := range list {
		obj, ok := el.(map[string]any)
		if !ok {
			continue
		}
		if len(items) == maxItems {
			break
		}

		id := stringField(obj, "id")
		if id == "" || seen[id] {
			id = uuid.NewString()
		}
		seen[id] = true

		caption := stringField(obj, "caption")
		if caption == "" {
			caption = stringField(obj, "text")
		}

		item := models.ScheduleItem{
			ID:       id,
			Date:     models.CanonicalDate(stringField(obj, "date")),
			Time:     models.CanonicalTime(stringField(obj, "time")),
			Type:     normalizeType(stringField(obj, "type")),
			Caption:  caption,
			Hashtags: normalizeHashtags(obj["hashtags"]),
			Status:   models.ItemStatusDraft,
		}
		if p := stringField(obj, "media_prompt"); p != "" {
			item.MediaPrompt = &p
		}
		items = append(items, item)
	}
	return items
}

// normalizeType maps the model's content type onto the known set. Anything
// unrecognised becomes text so it never blocks publishing on missing media.
func normalizeType(t string) string {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "image", "photo", "photos", "picture", "post":
		return models.ContentTypeImage
	case "video", "reel", "reels", "short", "story":
		return models.ContentTypeVideo
	case "carousel", "album", "gallery":
		return models.ContentTypeCarousel
	default:
		return models.ContentTypeText
	}
}

// normalizeHashtags accepts a list or a whitespace/comma separated string and
// returns distinct tags each with a single leading '#'.
func normalizeHashtags(raw any) []string {
	var parts []string
	switch v := raw.(type) {
	case []any:
		for _, el := range v {
			if s, ok := el.(string); ok {
				parts = append(parts, s)
			}
		}
	case string:
		parts = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' })
	}

	tags := make([]string, 0, len(parts))
	seen := make(map[string]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimLeft(strings.TrimSpace(p), "#")
		if p == "" {
			continue
		}
		tag := "#" + p
		if key := strings.ToLower(tag); !seen[key] {
			seen[key] = true
			tags = append(tags, tag)
		}
	}
	return tags
}

func decodeClarify(v any) *ClarifyResponse {
	switch c := v.(type) {
	case string:
		return &ClarifyResponse{Question: c}
	case map[string]any:
		resp := &ClarifyResponse{Question: stringField(c, "question")}
		if opts, ok := c["options"].([]any); ok {
			for _, o := range opts {
				if s, ok := o.(string); ok && s != "" {
					resp.Options = append(resp.Options, s)
				}
			}
		}
		return resp
	default:
		return &ClarifyResponse{Question: stringOf(v)}
	}
}

func decodeActions(list []any) []Action {
	actions := make([]Action, 0, len(list))
	for _, el := range list {
		switch v := el.(type) {
		case map[string]any:
			actions = append(actions, decodeAction(v))
		case string:
			actions = append(actions, Action{Name: v})
		}
	}
	return actions
}

func decodeAction(obj map[string]any) Action {
	var a Action
	for _, key := range []string{"action", "type", "tool"} {
		if s, ok := obj[key].(string); ok && s != "" {
			a.Name = s
			break
		}
	}
	for k, v := range obj {
		if (k == "action" || k == "type" || k == "tool") && v == a.Name {
			continue
		}
		if a.Params == nil {
			a.Params = make(map[string]any, len(obj))
		}
		a.Params[k] = v
	}
	return a
}

// stringField reads obj[key] as a string; numbers are formatted, anything else is "".
func stringField(obj map[string]any, key string) string {
	return strings.TrimSpace(stringOf(obj[key]))
}

func stringOf(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}
