package discovery

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeMemberTXT creates TXT records for member discovery.
func EncodeMemberTXT(m *Member) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeyEnsemble] = m.Ensemble
	txt[TXTKeyServerID] = strconv.FormatUint(uint64(m.ServerID), 10)

	// Optional fields
	if m.ReadOnly {
		txt[TXTKeyReadOnly] = ""
	}
	if m.Version != "" {
		txt[TXTKeyVersion] = m.Version
	}

	return txt
}

// DecodeMemberTXT parses TXT records from member discovery.
func DecodeMemberTXT(txt TXTRecordMap) (*Member, error) {
	m := &Member{}

	var ok bool
	m.Ensemble, ok = txt[TXTKeyEnsemble]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyEnsemble)
	}
	if m.Ensemble == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidEnsemble)
	}

	sid, ok := txt[TXTKeyServerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyServerID)
	}
	id, err := strconv.ParseUint(sid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidServerID, sid)
	}
	m.ServerID = uint32(id)

	_, m.ReadOnly = txt[TXTKeyReadOnly]
	m.Version = txt[TXTKeyVersion]

	return m, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to a slice of "key=value" strings.
// Keys without a value are emitted as bare flags. Output is sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	keys := make([]string, 0, len(txt))
	for k := range txt {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]string, 0, len(txt))
	for _, k := range keys {
		if v := txt[k]; v != "" {
			result = append(result, k+"="+v)
		} else {
			result = append(result, k)
		}
	}
	return result
}

// StringsToTXTRecords parses a slice of "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		parts := strings.SplitN(s, "=", 2)
		if len(parts) == 2 {
			txt[parts[0]] = parts[1]
		} else if len(parts) == 1 && parts[0] != "" {
			// Key without value (boolean flag)
			txt[parts[0]] = ""
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInstanceNameTooLong)
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
