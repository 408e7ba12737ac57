package model

// Timeline is the purchase timeline bucket as exposed by the API.
type Timeline string

const (
	Timeline0To3m     Timeline = "_0_3m"
	Timeline3To6m     Timeline = "_3_6m"
	Timeline6mPlus    Timeline = "_6m_plus"
	TimelineExploring Timeline = "Exploring"
)

// timelineTable is the single mapping between API codes and stored codes.
var timelineTable = []struct {
	api    Timeline
	stored string
}{
	{Timeline0To3m, "ZERO_TO_THREE"},
	{Timeline3To6m, "THREE_TO_SIX"},
	{Timeline6mPlus, "MORE_THAN_SIX"},
	{TimelineExploring, "EXPLORING"},
}

// Timelines lists the API codes in table order.
var Timelines = func() []Timeline {
	out := make([]Timeline, 0, len(timelineTable))
	for _, row := range timelineTable {
		out = append(out, row.api)
	}
	return out
}()

// StorageCode returns the persisted code for t.
func (t Timeline) StorageCode() (string, bool) {
	for _, row := range timelineTable {
		if row.api == t {
			return row.stored, true
		}
	}
	return "", false
}

// TimelineFromStorage maps a persisted code back to its API code.
func TimelineFromStorage(code string) (Timeline, bool) {
	for _, row := range timelineTable {
		if row.stored == code {
			return row.api, true
		}
	}
	return "", false
}
