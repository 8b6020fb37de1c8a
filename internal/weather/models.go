package weather

// AllowedOptions lists the provider parameters passed through to the upstream
// request, in the order they are appended to the upstream query string.
var AllowedOptions = []string{
	"unitGroup",
	"lang",
	"elements",
	"include",
	"options",
	"iconSet",
	"degreeDayMethod",
	"timezone",
	"maxDistance",
	"maxStations",
	"altitudeDifference",
	"locationNames",
	"forecastBasisDate",
	"forecastBasisDay",
	"degreeDayInverse",
	"degreeDayTempBase",
	"degreeDayStartDate",
	"degreeDayTempFix",
	"degreeDayTempMaxThreshold",
}

// Query parameter names with a fixed meaning.
const (
	ParamLocation   = "location"
	ParamRangeStart = "data1"
	ParamRangeEnd   = "data2"
)

// Option is a single allow-listed provider parameter.
type Option struct {
	Name  string
	Value string
}

// Query is the canonical form of a client request. It is built by Normalize and
// must not be modified afterwards.
type Query struct {
	Location string `validate:"required"`

	// RangeStart and RangeEnd are optional path segments. RangeEnd is only set
	// when RangeStart is.
	RangeStart string
	RangeEnd   string

	// Options are in AllowedOptions order.
	Options []Option
}

// Option returns the value of the named option, if present.
func (q Query) Option(name string) (string, bool) {
	for _, o := range q.Options {
		if o.Name == name {
			return o.Value, true
		}
	}
	return "", false
}
