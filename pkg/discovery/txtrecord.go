package discovery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTokenTXT creates TXT records for a token advertisement.
func EncodeTokenTXT(info *TokenInfo) TXTRecordMap {
	txt := TXTRecordMap{
		TXTKeyUUID: strings.ToLower(info.UUID),
	}
	if info.Version != "" {
		txt[TXTKeyVersion] = info.Version
	}
	if info.NFCPowered {
		txt[TXTKeyNFCPowered] = "1"
	}

	transports := info.Transports
	if len(transports) == 0 {
		transports = []string{TransportAPDU, TransportCTAPHID}
	}
	txt[TXTKeyTransports] = strings.Join(transports, ",")
	return txt
}

// DecodeTokenTXT parses TXT records from a token advertisement.
func DecodeTokenTXT(txt TXTRecordMap) (*TokenInfo, error) {
	uuid, ok := txt[TXTKeyUUID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyUUID)
	}
	if err := ValidateUUID(uuid); err != nil {
		return nil, err
	}

	info := &TokenInfo{
		UUID:    strings.ToLower(uuid),
		Version: txt[TXTKeyVersion],
	}

	switch nf := txt[TXTKeyNFCPowered]; nf {
	case "", "0":
	case "1":
		info.NFCPowered = true
	default:
		return nil, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, TXTKeyNFCPowered, nf)
	}

	if tp := txt[TXTKeyTransports]; tp != "" {
		for _, t := range strings.Split(tp, ",") {
			if t = strings.TrimSpace(t); t != "" {
				info.Transports = append(info.Transports, t)
			}
		}
	}
	return info, nil
}

// ValidateUUID checks that uuid is 32 hex digits.
func ValidateUUID(uuid string) error {
	if len(uuid) != UUIDHexLength {
		return fmt.Errorf("%w: length %d", ErrInvalidUUID, len(uuid))
	}
	for _, c := range uuid {
		if !isHexDigit(c) {
			return fmt.Errorf("%w: %q", ErrInvalidUUID, uuid)
		}
	}
	return nil
}

func isHexDigit(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// TXTRecordsToStrings converts a TXTRecordMap to sorted "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		key, value, _ := strings.Cut(s, "=")
		if key != "" {
			txt[key] = value
		}
	}
	return txt
}

// ValidateInstanceName checks if an instance name is valid for mDNS.
func ValidateInstanceName(name string) error {
	if name == "" {
		return errors.New("instance name is empty")
	}
	if len(name) > MaxInstanceNameLen {
		return ErrInstanceNameTooLong
	}
	return nil
}
