package core

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"
)

// guestNamespace seeds deterministic guest account ids.
var guestNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("apptimport:guest-client"))

// GuestID returns the stable id of the guest account for a dedup key.
func GuestID(salonID, dedupKey string) string {
	return uuid.NewSHA1(guestNamespace, []byte(salonID+"|"+dedupKey)).String()
}

// ClientReconciler resolves row clients to accounts.
type ClientReconciler struct {
	dir ClientDirectory
}

// NewClientReconciler creates a reconciler over dir.
func NewClientReconciler(dir ClientDirectory) *ClientReconciler {
	return &ClientReconciler{dir: dir}
}

// ClientResolution maps rows to their deduplicated client records.
type ClientResolution struct {
	records []*ClientRecord
	byRow   map[int]*ClientRecord
}

// ForRow returns the record resolved for a row number.
func (r *ClientResolution) ForRow(number int) (ClientRecord, bool) {
	rec, ok := r.byRow[number]
	if !ok {
		return ClientRecord{}, false
	}
	return *rec, true
}

// Records returns the distinct records in first-seen order.
func (r *ClientResolution) Records() []ClientRecord {
	out := make([]ClientRecord, len(r.records))
	for i, rec := range r.records {
		out[i] = *rec
	}
	return out
}

// Summary counts the distinct records by kind.
func (r *ClientResolution) Summary() UserCreationSummary {
	var s UserCreationSummary
	for _, rec := range r.records {
		switch rec.Kind {
		case ClientExisting:
			s.ExistingCount++
		case ClientNewGuest:
			s.NewGuestCount++
		default:
			s.UnresolvedCount++
		}
	}
	return s
}

// Plan resolves the clients of the valid rows without creating anything.
func (c *ClientReconciler) Plan(ctx context.Context, salonID string, rows []Row, createGuests bool) (*ClientResolution, error) {
	return c.resolve(ctx, salonID, rows, createGuests, false)
}

// Apply resolves the clients of the valid rows and creates the guest
// accounts that are needed.
func (c *ClientReconciler) Apply(ctx context.Context, salonID string, rows []Row, createGuests bool) (*ClientResolution, error) {
	return c.resolve(ctx, salonID, rows, createGuests, true)
}

// clientGroup is a set of rows that refer to the same person.
type clientGroup struct {
	rows   []int
	name   string
	emails []string
	phones []string
}

func (c *ClientReconciler) resolve(ctx context.Context, salonID string, rows []Row, createGuests, persist bool) (*ClientResolution, error) {
	groups := groupClients(rows)
	res := &ClientResolution{byRow: make(map[int]*ClientRecord)}

	for _, g := range groups {
		rec, err := c.resolveGroup(ctx, salonID, g, createGuests)
		if err != nil {
			return nil, err
		}

		if persist && rec.Kind == ClientNewGuest {
			guest := GuestAccount{ID: rec.ClientID, Name: rec.Name, Email: rec.Email, Phone: rec.Phone}
			if err := c.dir.EnsureGuest(ctx, salonID, guest); err != nil {
				return nil, fmt.Errorf("create guest %s: %w", rec.Key, err)
			}
		}

		res.records = append(res.records, rec)
		for _, n := range g.rows {
			res.byRow[n] = rec
		}
	}
	return res, nil
}

func (c *ClientReconciler) resolveGroup(ctx context.Context, salonID string, g *clientGroup, createGuests bool) (*ClientRecord, error) {
	rec := &ClientRecord{Name: g.name}
	if len(g.emails) > 0 {
		rec.Email = g.emails[0]
	}
	if len(g.phones) > 0 {
		rec.Phone = g.phones[0]
	}

	switch {
	case rec.Email != "":
		rec.Key = "email:" + rec.Email
	case rec.Phone != "":
		rec.Key = "phone:" + rec.Phone
	default:
		rec.Key = "name:" + NormalizeName(g.name)
	}

	for _, email := range g.emails {
		id, err := c.dir.FindByEmail(ctx, salonID, email)
		if err != nil {
			return nil, fmt.Errorf("find client by email: %w", err)
		}
		if id != "" {
			rec.Kind, rec.ClientID = ClientExisting, id
			return rec, nil
		}
	}
	for _, phone := range g.phones {
		id, err := c.dir.FindByPhone(ctx, salonID, phone)
		if err != nil {
			return nil, fmt.Errorf("find client by phone: %w", err)
		}
		if id != "" {
			rec.Kind, rec.ClientID = ClientExisting, id
			return rec, nil
		}
	}

	if !createGuests {
		rec.Kind = ClientUnresolved
		return rec, nil
	}
	rec.Kind, rec.ClientID = ClientNewGuest, GuestID(salonID, rec.Key)
	return rec, nil
}

// groupClients links valid rows that share an email or a phone. Rows with
// neither are grouped by client name.
func groupClients(rows []Row) []*clientGroup {
	parent := make(map[string]string)
	var find func(string) string
	find = func(k string) string {
		p, ok := parent[k]
		if !ok {
			parent[k] = k
			return k
		}
		if p == k {
			return k
		}
		root := find(p)
		parent[k] = root
		return root
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	rowKeys := make(map[int][]string)
	var order []int
	for _, r := range rows {
		if !r.Valid() {
			continue
		}
		var keys []string
		if e := r.Fields.ClientEmail; e != "" {
			keys = append(keys, "email:"+e)
		}
		if p := r.Fields.ClientPhone; p != "" {
			keys = append(keys, "phone:"+p)
		}
		if len(keys) == 0 {
			keys = append(keys, "name:"+NormalizeName(r.Fields.ClientName))
		}
		for _, k := range keys[1:] {
			union(keys[0], k)
		}
		find(keys[0])
		rowKeys[r.Number] = keys
		order = append(order, r.Number)
	}

	byRoot := make(map[string]*clientGroup)
	var groups []*clientGroup
	fields := make(map[int]RowFields, len(rows))
	for _, r := range rows {
		fields[r.Number] = r.Fields
	}

	for _, n := range order {
		root := find(rowKeys[n][0])
		g, ok := byRoot[root]
		if !ok {
			g = &clientGroup{name: fields[n].ClientName}
			byRoot[root] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, n)
		f := fields[n]
		if f.ClientEmail != "" && !slices.Contains(g.emails, f.ClientEmail) {
			g.emails = append(g.emails, f.ClientEmail)
		}
		if f.ClientPhone != "" && !slices.Contains(g.phones, f.ClientPhone) {
			g.phones = append(g.phones, f.ClientPhone)
		}
	}

	for _, g := range groups {
		sort.Ints(g.rows)
	}
	return groups
}
