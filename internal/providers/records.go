package providers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/brensch/campwatch/internal/campsite"
	"github.com/brensch/campwatch/internal/ridb"
)

// flexString accepts a JSON string or number. RIDB is not consistent about
// which one it sends for ids.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexBool accepts true/false or strings such as "Y", "Yes", "true".
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case bool:
		*f = flexBool(t)
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		if pb, err := strconv.ParseBool(s); err == nil {
			*f = flexBool(pb)
		} else {
			*f = s == "y" || s == "yes"
		}
	default:
		*f = false
	}
	return nil
}

// flexFloat accepts a number or a numeric string; anything else reads as 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case float64:
		*f = flexFloat(t)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err == nil {
			*f = flexFloat(n)
		}
	}
	return nil
}

type ridbCampsite struct {
	CampsiteID         flexString `json:"CampsiteID"`
	CampsiteName       string     `json:"CampsiteName"`
	CampsiteType       string     `json:"CampsiteType"`
	TypeOfUse          string     `json:"TypeOfUse"`
	Loop               string     `json:"Loop"`
	CampsiteAccessible flexBool   `json:"CampsiteAccessible"`
	CampsiteLatitude   flexFloat  `json:"CampsiteLatitude"`
	CampsiteLongitude  flexFloat  `json:"CampsiteLongitude"`
}

// decodeCampsite maps one RIDB campsite record. A record without an id is an
// error: the id is the catalog key.
func decodeCampsite(raw json.RawMessage) (*campsite.Campsite, error) {
	var rec ridbCampsite
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ridb.ErrMalformedRecord, err)
	}
	if rec.CampsiteID == "" {
		return nil, fmt.Errorf("%w: campsite record without CampsiteID", ridb.ErrMalformedRecord)
	}
	return &campsite.Campsite{
		ID:         string(rec.CampsiteID),
		Name:       rec.CampsiteName,
		SiteType:   rec.CampsiteType,
		Loop:       rec.Loop,
		TypeOfUse:  rec.TypeOfUse,
		Accessible: bool(rec.CampsiteAccessible),
		Latitude:   float64(rec.CampsiteLatitude),
		Longitude:  float64(rec.CampsiteLongitude),
	}, nil
}

type ridbFacility struct {
	FacilityID              flexString `json:"FacilityID"`
	FacilityName            string     `json:"FacilityName"`
	FacilityTypeDescription string     `json:"FacilityTypeDescription"`
	FacilityLatitude        flexFloat  `json:"FacilityLatitude"`
	FacilityLongitude       flexFloat  `json:"FacilityLongitude"`
}

func decodeFacility(raw json.RawMessage) (FacilityInfo, error) {
	var rec ridbFacility
	if err := json.Unmarshal(raw, &rec); err != nil {
		return FacilityInfo{}, fmt.Errorf("%w: %v", ridb.ErrMalformedRecord, err)
	}
	if rec.FacilityID == "" {
		return FacilityInfo{}, fmt.Errorf("%w: facility record without FacilityID", ridb.ErrMalformedRecord)
	}
	return FacilityInfo{
		ID:   string(rec.FacilityID),
		Name: rec.FacilityName,
		Type: rec.FacilityTypeDescription,
		Lat:  float64(rec.FacilityLatitude),
		Lon:  float64(rec.FacilityLongitude),
	}, nil
}
