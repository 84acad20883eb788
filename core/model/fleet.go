package model

import "sort"

// SortLoads returns a copy of loads ordered by descending priority, then ID.
func SortLoads(loads []Load) []Load {
	out := append([]Load(nil), loads...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// PairTrucks binds each driver to one truck. A truck whose DriverID names
// the driver wins; remaining drivers, in input order, take the nearest truck
// that is neither bound to another driver nor already taken. Drivers left
// without a truck are absent from the result.
func PairTrucks(drivers []Driver, trucks []Truck) map[string]Truck {
	out := make(map[string]Truck, len(drivers))
	known := make(map[string]bool, len(drivers))
	for _, d := range drivers {
		known[d.ID] = true
	}
	taken := make(map[string]bool, len(trucks))
	for _, t := range trucks {
		if t.DriverID == "" || !known[t.DriverID] {
			continue
		}
		if _, dup := out[t.DriverID]; dup {
			continue
		}
		out[t.DriverID] = t
		taken[t.ID] = true
	}
	for _, d := range drivers {
		if _, ok := out[d.ID]; ok {
			continue
		}
		if t, ok := NearestTruck(d.Location, trucks, func(t Truck) bool {
			return !taken[t.ID] && (t.DriverID == "" || !known[t.DriverID])
		}); ok {
			out[d.ID] = t
			taken[t.ID] = true
		}
	}
	return out
}

// NearestTruck returns the closest truck to loc accepted by keep. Ties go
// to the lower truck ID.
func NearestTruck(loc Location, trucks []Truck, keep func(Truck) bool) (Truck, bool) {
	cands := make([]Truck, 0, len(trucks))
	for _, t := range trucks {
		if keep == nil || keep(t) {
			cands = append(cands, t)
		}
	}
	if len(cands) == 0 {
		return Truck{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		di, dj := DistanceMiles(loc, cands[i].Location), DistanceMiles(loc, cands[j].Location)
		if di != dj {
			return di < dj
		}
		return cands[i].ID < cands[j].ID
	})
	return cands[0], true
}

// FitsWindow reports whether w lies within the driver's availability. A nil
// window always fits; a zero availability window places no restriction.
func (d Driver) FitsWindow(w *TimeWindow) bool {
	if w == nil || (d.Availability.Start.IsZero() && d.Availability.End.IsZero()) {
		return true
	}
	return d.Availability.Contains(*w)
}
