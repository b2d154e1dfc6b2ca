package marketdata

import (
	"bytes"
	"strconv"

	"github.com/quickfixgo/quickfix"
	"github.com/quickfixgo/tag"
)

const soh = '\x01'

type wireField struct {
	tag   quickfix.Tag
	value []byte
}

// entryFields holds the fields of one NoMDEntries instance
type entryFields map[quickfix.Tag]string

// dataFields maps a length field to the data field it sizes. Data values may
// contain SOH and are read by length.
var dataFields = map[quickfix.Tag]quickfix.Tag{
	tag.SecureDataLen:   tag.SecureData,
	tag.RawDataLength:   tag.RawData,
	tag.XmlDataLen:      tag.XmlData,
	tag.SignatureLength: tag.Signature,
	tag.EncodedTextLen:  tag.EncodedText,
}

// mdEntriesEnd holds the fields that close the NoMDEntries group: body fields
// of a full refresh that are not entry members, and the trailer.
var mdEntriesEnd = map[quickfix.Tag]bool{
	tag.FinancialStatus:     true,
	tag.CorporateAction:     true,
	tag.NetChgPrevDay:       true,
	tag.TotalVolumeTraded:   true,
	tag.ApplQueueDepth:      true,
	tag.ApplQueueResolution: true,
	tag.SignatureLength:     true,
	tag.Signature:           true,
	tag.CheckSum:            true,
}

// scanFields splits a raw FIX message into its fields in wire order. It stops
// at the first field that cannot be read and returns what came before it.
func scanFields(raw []byte) []wireField {
	var (
		fields    []wireField
		expect    quickfix.Tag
		expectLen = -1
	)
	for len(raw) > 0 {
		eq := bytes.IndexByte(raw, '=')
		if eq <= 0 {
			break
		}
		n, err := strconv.Atoi(string(raw[:eq]))
		if err != nil {
			break
		}
		t := quickfix.Tag(n)
		raw = raw[eq+1:]

		end := bytes.IndexByte(raw, soh)
		if t == expect && expectLen >= 0 && expectLen < len(raw) && raw[expectLen] == soh {
			end = expectLen
		}
		expectLen = -1
		if end < 0 {
			end = len(raw)
		}

		value := raw[:end]
		fields = append(fields, wireField{tag: t, value: value})
		if data, ok := dataFields[t]; ok {
			if l, err := strconv.Atoi(string(value)); err == nil {
				expect, expectLen = data, l
			}
		}

		if end == len(raw) {
			break
		}
		raw = raw[end+1:]
	}
	return fields
}

// splitMDEntries cuts the fields following NoMDEntries(268) into instances.
// An instance starts at every MDEntryType(269), and also whenever a tag
// repeats inside the current instance, so an instance missing its 269 is kept
// apart from its neighbours instead of overwriting them. Tags that are not
// group members stay in the current instance.
func splitMDEntries(fields []wireField) []entryFields {
	start := -1
	for i, f := range fields {
		if f.tag == tag.NoMDEntries {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil
	}

	var (
		instances []entryFields
		current   entryFields
	)
	for _, f := range fields[start:] {
		if mdEntriesEnd[f.tag] {
			break
		}
		_, repeated := current[f.tag]
		if current == nil || repeated || (f.tag == tag.MDEntryType && len(current) > 0) {
			current = entryFields{}
			instances = append(instances, current)
		}
		current[f.tag] = string(f.value)
	}
	return instances
}
