package httpparser

// Method is a request method, numbered as in the C http_parser.
type Method uint8

const (
	MethodDelete Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut
	MethodConnect
	MethodOptions
	MethodTrace
	MethodCopy
	MethodLock
	MethodMkcol
	MethodMove
	MethodPropfind
	MethodProppatch
	MethodSearch
	MethodUnlock
	MethodReport
	MethodMkactivity
	MethodCheckout
	MethodMerge
	MethodMSearch
	MethodNotify
	MethodSubscribe
	MethodUnsubscribe
	MethodPatch
	MethodPurge
	MethodMkcalendar
)

var methodNames = [...]string{
	MethodDelete:      "DELETE",
	MethodGet:         "GET",
	MethodHead:        "HEAD",
	MethodPost:        "POST",
	MethodPut:         "PUT",
	MethodConnect:     "CONNECT",
	MethodOptions:     "OPTIONS",
	MethodTrace:       "TRACE",
	MethodCopy:        "COPY",
	MethodLock:        "LOCK",
	MethodMkcol:       "MKCOL",
	MethodMove:        "MOVE",
	MethodPropfind:    "PROPFIND",
	MethodProppatch:   "PROPPATCH",
	MethodSearch:      "SEARCH",
	MethodUnlock:      "UNLOCK",
	MethodReport:      "REPORT",
	MethodMkactivity:  "MKACTIVITY",
	MethodCheckout:    "CHECKOUT",
	MethodMerge:       "MERGE",
	MethodMSearch:     "M-SEARCH",
	MethodNotify:      "NOTIFY",
	MethodSubscribe:   "SUBSCRIBE",
	MethodUnsubscribe: "UNSUBSCRIBE",
	MethodPatch:       "PATCH",
	MethodPurge:       "PURGE",
	MethodMkcalendar:  "MKCALENDAR",
}

// maxMethodLen is the length of the longest method name.
const maxMethodLen = len("UNSUBSCRIBE")

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return "<unknown>"
}

// Methods returns every known method, in numeric order.
func Methods() []Method {
	methods := make([]Method, len(methodNames))
	for i := range methods {
		methods[i] = Method(i)
	}
	return methods
}

func lookupMethod(name []byte) (Method, bool) {
	for i, s := range methodNames {
		if s == string(name) {
			return Method(i), true
		}
	}
	return 0, false
}

func isMethodPrefix(prefix []byte) bool {
	for _, s := range methodNames {
		if len(s) >= len(prefix) && s[:len(prefix)] == string(prefix) {
			return true
		}
	}
	return false
}
