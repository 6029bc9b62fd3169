package types

import "strconv"

// Typed views over the free-form entities map. The parser keeps the map
// flexible; executors read through these so that only the keys legal for a
// domain are reachable at compile time.

type CalendarEntities struct {
	Time        string
	NewTime     string
	Date        string
	Title       string
	Description string
	DurationMin int
}

type EmailEntities struct {
	To      string
	Subject string
	Body    string
	EmailID string
}

type BookingEntities struct {
	Time      string
	Date      string
	PartySize int
	Type      string
}

func (i Intent) Calendar() CalendarEntities {
	return CalendarEntities{
		Time:        entityString(i.Entities, "time"),
		NewTime:     entityString(i.Entities, "newTime"),
		Date:        entityString(i.Entities, "date"),
		Title:       firstEntityString(i.Entities, "title", "summary", "meetingTitle"),
		Description: entityString(i.Entities, "description"),
		DurationMin: entityInt(i.Entities, "duration"),
	}
}

func (i Intent) Email() EmailEntities {
	return EmailEntities{
		To:      firstEntityString(i.Entities, "to", "recipient"),
		Subject: entityString(i.Entities, "subject"),
		Body:    firstEntityString(i.Entities, "body", "message"),
		EmailID: entityString(i.Entities, "emailId"),
	}
}

func (i Intent) Booking() BookingEntities {
	return BookingEntities{
		Time:      entityString(i.Entities, "time"),
		Date:      entityString(i.Entities, "date"),
		PartySize: entityInt(i.Entities, "partySize"),
		Type:      entityString(i.Entities, "type"),
	}
}

// SetEntity returns a copy of the intent with one entity slot set. The
// receiver is left untouched so callers cannot alias a stored intent.
func (i Intent) SetEntity(key string, value interface{}) Intent {
	entities := make(map[string]interface{}, len(i.Entities)+1)
	for k, v := range i.Entities {
		entities[k] = v
	}
	entities[key] = value
	i.Entities = entities
	return i
}

func entityString(entities map[string]interface{}, key string) string {
	if entities == nil {
		return ""
	}
	s, _ := entities[key].(string)
	return s
}

func firstEntityString(entities map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := entityString(entities, key); s != "" {
			return s
		}
	}
	return ""
}

func entityInt(entities map[string]interface{}, key string) int {
	if entities == nil {
		return 0
	}
	switch v := entities[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}
