package order

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vasiliy-maslov/print-admin/internal/docstore"
)

// Field names written by the customer app into the document store.
const (
	docUserID         = "userId"
	docStatus         = "status"
	docTotalCost      = "totalCost"
	docDeliveryOption = "deliveryOption"
	docQRCode         = "qrCode"
	docCreatedAt      = "createdAt"
	docEstimatedReady = "estimatedReady"
	docCompletedAt    = "completedAt"
	docPrintOption    = "printOption"
	docFiles          = "files"
)

// Defaults applied when a document lacks a field or holds an unusable value.
var documentDefaults = struct {
	UserID         string
	Status         Status
	TotalCost      decimal.Decimal
	DeliveryOption string
	QRCode         string
	Quantity       int
	SizeBytes      int64
}{
	UserID:         "",
	Status:         StatusPending,
	TotalCost:      decimal.Zero,
	DeliveryOption: "",
	QRCode:         "",
	Quantity:       1,
	SizeBytes:      0,
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalizer maps raw document-store records onto the relational order shape.
// It holds no state apart from the clock used for missing creation times, so
// output is identical across calls only while that clock returns the same
// instant. Records without createdAt get the clock time on every call.
type Normalizer struct {
	now func() time.Time
}

func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now}
}

func (n *Normalizer) Normalize(doc docstore.Document) Order {
	f := doc.Fields

	o := Order{
		ID:             doc.ID,
		OrderID:        doc.ID,
		UserID:         stringField(f, docUserID, documentDefaults.UserID),
		Status:         documentDefaults.Status,
		TotalCost:      decimalField(f, docTotalCost, documentDefaults.TotalCost),
		DeliveryOption: stringField(f, docDeliveryOption, documentDefaults.DeliveryOption),
		QRCode:         stringField(f, docQRCode, documentDefaults.QRCode),
		EstimatedReady: timeField(f, docEstimatedReady),
		CompletedAt:    timeField(f, docCompletedAt),
		PrintOptions:   printOptionsField(f),
		Files:          filesField(f),
		Source:         SourceSecondary,
	}

	if raw := stringField(f, docStatus, ""); raw != "" {
		o.Status = canonicalStatus(raw)
	}

	if created := timeField(f, docCreatedAt); created != nil {
		o.CreatedAt = created
	} else {
		now := n.now().UTC()
		o.CreatedAt = &now
		o.createdAtDefaulted = true
	}

	return o
}

func printOptionsField(f map[string]docstore.Value) *PrintOptions {
	v, ok := f[docPrintOption]
	if !ok {
		return nil
	}
	opt, ok := v.Fields()
	if !ok {
		return nil
	}

	qty := intField(opt, "quantity", int64(documentDefaults.Quantity))
	if qty < 1 {
		qty = 1
	}

	return &PrintOptions{
		PaperSize:   stringField(opt, "paperSize", ""),
		Color:       stringField(opt, "color", ""),
		Quantity:    int(qty),
		Sides:       stringField(opt, "sides", ""),
		Orientation: stringField(opt, "orientation", ""),
		Binding:     stringField(opt, "binding", ""),
	}
}

func filesField(f map[string]docstore.Value) []File {
	files := []File{}

	v, ok := f[docFiles]
	if !ok {
		return files
	}
	items, ok := v.Items()
	if !ok {
		return files
	}

	for _, item := range items {
		ff, ok := item.Fields()
		if !ok {
			continue
		}

		size := intField(ff, "sizeBytes", documentDefaults.SizeBytes)
		if size < 0 {
			size = 0
		}
		name := stringField(ff, "name", "")
		url := stringField(ff, "firebaseStorageUrl", "")
		if url == "" {
			url = stringField(ff, "fileUrl", "")
		}

		files = append(files, File{
			ID:           stringField(ff, "id", ""),
			Name:         name,
			OriginalName: name,
			SizeBytes:    size,
			FileType:     stringField(ff, "fileType", ""),
			FileURL:      url,
		})
	}
	return files
}

func stringField(f map[string]docstore.Value, key, def string) string {
	v, ok := f[key]
	if !ok {
		return def
	}
	switch v.Kind() {
	case docstore.KindString, docstore.KindTimestamp:
		s, _ := v.Str()
		return s
	case docstore.KindInteger:
		i, _ := v.Int()
		return strconv.FormatInt(i, 10)
	case docstore.KindDouble:
		d, _ := v.Float()
		return strconv.FormatFloat(d, 'f', -1, 64)
	case docstore.KindBoolean:
		b, _ := v.Bool()
		return strconv.FormatBool(b)
	}
	return def
}

func intField(f map[string]docstore.Value, key string, def int64) int64 {
	v, ok := f[key]
	if !ok {
		return def
	}
	switch v.Kind() {
	case docstore.KindInteger:
		i, _ := v.Int()
		return i
	case docstore.KindDouble:
		d, _ := v.Float()
		return int64(d)
	case docstore.KindString:
		s, _ := v.Str()
		if i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return i
		}
	}
	return def
}

func decimalField(f map[string]docstore.Value, key string, def decimal.Decimal) decimal.Decimal {
	v, ok := f[key]
	if !ok {
		return def
	}

	var d decimal.Decimal
	switch v.Kind() {
	case docstore.KindInteger:
		i, _ := v.Int()
		d = decimal.NewFromInt(i)
	case docstore.KindDouble:
		fl, _ := v.Float()
		d = decimal.NewFromFloat(fl)
	case docstore.KindString:
		s, _ := v.Str()
		parsed, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return def
		}
		d = parsed
	default:
		return def
	}

	if d.IsNegative() {
		return def
	}
	return d
}

func timeField(f map[string]docstore.Value, key string) *time.Time {
	v, ok := f[key]
	if !ok {
		return nil
	}

	switch v.Kind() {
	case docstore.KindString, docstore.KindTimestamp:
		s, _ := v.Str()
		return parseTime(s)
	case docstore.KindMap:
		// {seconds, nanoseconds} из клиентских SDK
		m, _ := v.Fields()
		secs := intField(m, "seconds", intField(m, "_seconds", -1))
		if secs < 0 {
			return nil
		}
		nanos := intField(m, "nanoseconds", intField(m, "_nanoseconds", 0))
		t := time.Unix(secs, nanos).UTC()
		return &t
	}
	return nil
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
