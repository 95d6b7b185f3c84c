package togglr

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"slices"
	"strconv"
)

// Well-known attribute names understood by the Togglr targeting rules.
const (
	AttrUserID         = "user.id"
	AttrUserEmail      = "user.email"
	AttrUserAnonymous  = "user.anonymous"
	AttrCountryCode    = "country_code"
	AttrRegion         = "region"
	AttrCity           = "city"
	AttrManufacturer   = "manufacturer"
	AttrDeviceType     = "device_type"
	AttrOS             = "os"
	AttrOSVersion      = "os_version"
	AttrBrowser        = "browser"
	AttrBrowserVersion = "browser_version"
	AttrLanguage       = "language"
	AttrConnectionType = "connection_type"
	AttrAge            = "age"
	AttrGender         = "gender"
	AttrIP             = "ip"
	AttrAppVersion     = "app_version"
	AttrPlatform       = "platform"
)

// RequestContext is the attribute bag describing the subject of an evaluation.
//
// Values are normalized on write to one of string, int64, bool or float64.
// A RequestContext is a builder: it is not safe for concurrent mutation, but the
// client takes a private snapshot at the start of every call, so changes made
// afterwards never leak into an in-flight request.
type RequestContext struct {
	attrs map[string]any
}

// NewContext returns an empty context.
func NewContext() *RequestContext {
	return &RequestContext{attrs: make(map[string]any)}
}

// NewContextFrom returns a context holding the normalized contents of attrs.
func NewContextFrom(attrs map[string]any) *RequestContext {
	rc := &RequestContext{attrs: make(map[string]any, len(attrs))}
	for k, v := range attrs {
		rc.Set(k, v)
	}
	return rc
}

// Set inserts or overwrites key. A nil value removes the attribute.
func (rc *RequestContext) Set(key string, value any) *RequestContext {
	if rc.attrs == nil {
		rc.attrs = make(map[string]any)
	}
	if value == nil {
		delete(rc.attrs, key)
		return rc
	}
	rc.attrs[key] = normalize(value)
	return rc
}

// Get returns the value stored under key, or def when the key is absent.
func (rc *RequestContext) Get(key string, def any) any {
	if v, ok := rc.Lookup(key); ok {
		return v
	}
	return def
}

// Lookup returns the value stored under key and whether it was present.
func (rc *RequestContext) Lookup(key string) (any, bool) {
	if rc == nil {
		return nil, false
	}
	v, ok := rc.attrs[key]
	return v, ok
}

// Len returns the number of attributes.
func (rc *RequestContext) Len() int {
	if rc == nil {
		return 0
	}
	return len(rc.attrs)
}

// Keys returns the attribute names in sorted order.
func (rc *RequestContext) Keys() []string {
	if rc == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(rc.attrs))
}

// Map returns a copy of the attributes.
func (rc *RequestContext) Map() map[string]any {
	if rc == nil {
		return map[string]any{}
	}
	return maps.Clone(rc.attrs)
}

// Clone returns an independent copy. Cloning a nil context yields an empty one.
func (rc *RequestContext) Clone() *RequestContext {
	if rc == nil || rc.attrs == nil {
		return NewContext()
	}
	return &RequestContext{attrs: maps.Clone(rc.attrs)}
}

// Canonical returns the JSON object of the attributes with keys in sorted order.
// Two contexts with the same content produce identical bytes regardless of the
// order in which attributes were set. The result is both the evaluate request
// body and the input of the cache key.
func (rc *RequestContext) Canonical() []byte {
	if rc.Len() == 0 {
		return []byte("{}")
	}
	// encoding/json sorts map keys, and Set only stores JSON-safe values.
	b, err := json.Marshal(rc.attrs)
	if err != nil {
		panic(fmt.Sprintf("togglr: encoding normalized context: %v", err))
	}
	return b
}

func (rc *RequestContext) String() string {
	return "RequestContext" + string(rc.Canonical())
}

// LogValue renders the attributes as a slog group.
func (rc *RequestContext) LogValue() slog.Value {
	keys := rc.Keys()
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, rc.attrs[k]))
	}
	return slog.GroupValue(attrs...)
}

func (rc *RequestContext) WithUserID(id string) *RequestContext { return rc.Set(AttrUserID, id) }

func (rc *RequestContext) WithUserEmail(email string) *RequestContext {
	return rc.Set(AttrUserEmail, email)
}

func (rc *RequestContext) WithAnonymous(anonymous bool) *RequestContext {
	return rc.Set(AttrUserAnonymous, anonymous)
}

// WithCountry sets the ISO 3166-1 alpha-2 country code.
func (rc *RequestContext) WithCountry(code string) *RequestContext {
	return rc.Set(AttrCountryCode, code)
}

func (rc *RequestContext) WithRegion(region string) *RequestContext {
	return rc.Set(AttrRegion, region)
}

func (rc *RequestContext) WithCity(city string) *RequestContext { return rc.Set(AttrCity, city) }

func (rc *RequestContext) WithManufacturer(manufacturer string) *RequestContext {
	return rc.Set(AttrManufacturer, manufacturer)
}

func (rc *RequestContext) WithDeviceType(deviceType string) *RequestContext {
	return rc.Set(AttrDeviceType, deviceType)
}

func (rc *RequestContext) WithOS(os string) *RequestContext { return rc.Set(AttrOS, os) }

func (rc *RequestContext) WithOSVersion(version string) *RequestContext {
	return rc.Set(AttrOSVersion, version)
}

func (rc *RequestContext) WithBrowser(browser string) *RequestContext {
	return rc.Set(AttrBrowser, browser)
}

func (rc *RequestContext) WithBrowserVersion(version string) *RequestContext {
	return rc.Set(AttrBrowserVersion, version)
}

func (rc *RequestContext) WithLanguage(language string) *RequestContext {
	return rc.Set(AttrLanguage, language)
}

func (rc *RequestContext) WithConnectionType(connectionType string) *RequestContext {
	return rc.Set(AttrConnectionType, connectionType)
}

func (rc *RequestContext) WithAge(age int) *RequestContext { return rc.Set(AttrAge, age) }

func (rc *RequestContext) WithGender(gender string) *RequestContext {
	return rc.Set(AttrGender, gender)
}

func (rc *RequestContext) WithIP(ip string) *RequestContext { return rc.Set(AttrIP, ip) }

func (rc *RequestContext) WithAppVersion(version string) *RequestContext {
	return rc.Set(AttrAppVersion, version)
}

func (rc *RequestContext) WithPlatform(platform string) *RequestContext {
	return rc.Set(AttrPlatform, platform)
}

// normalize maps any Go value onto the four attribute types.
func normalize(v any) any {
	switch x := v.(type) {
	case string, bool, int64:
		return x
	case float64:
		return normalizeFloat(x)
	case float32:
		return normalizeFloat(float64(x))
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint:
		return normalizeUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return normalizeUint(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// NaN and infinities have no JSON representation.
func normalizeFloat(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return f
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return strconv.FormatUint(u, 10)
	}
	return int64(u)
}
