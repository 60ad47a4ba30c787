package datamodel

import "fmt"

// RowID identifies a table row. The low 32 bits hold a slot that is
// recycled after deletion; the high 32 bits hold the slot's generation,
// bumped on every reuse, so an id captured before a delete never reaches
// the row that later takes over the slot.
type RowID uint64

// NoRow is never handed out by a table.
const NoRow RowID = 1<<64 - 1

func makeRowID(slot, gen uint32) RowID { return RowID(uint64(gen)<<32 | uint64(slot)) }

// Slot returns the recyclable part of the id.
func (id RowID) Slot() uint32 { return uint32(id) }

// Generation returns how many times the slot had been reused when the id
// was issued.
func (id RowID) Generation() uint32 { return uint32(id >> 32) }

func (id RowID) String() string {
	if id == NoRow {
		return "none"
	}
	if id.Generation() == 0 {
		return fmt.Sprintf("%d", id.Slot())
	}
	return fmt.Sprintf("%d.%d", id.Slot(), id.Generation())
}

// idGen hands out RowIDs for one table.
type idGen struct {
	next uint32
	gens map[uint32]uint32 // current generation of every slot ever issued
	pool []uint32          // released slots, oldest first
	free map[uint32]bool   // slots in pool
}

func newIDGen() *idGen {
	return &idGen{gens: make(map[uint32]uint32), free: make(map[uint32]bool)}
}

func (g *idGen) alloc() RowID {
	if len(g.pool) > 0 {
		slot := g.pool[0]
		g.pool = g.pool[1:]
		delete(g.free, slot)
		return makeRowID(slot, g.gens[slot])
	}
	slot := g.next
	g.next++
	g.gens[slot] = 0
	return makeRowID(slot, 0)
}

// claim records an id chosen by a caller. It fails when the slot is
// already at a newer generation.
func (g *idGen) claim(id RowID) bool {
	slot, gen := id.Slot(), id.Generation()
	cur, seen := g.gens[slot]
	if seen && gen < cur {
		return false
	}
	g.gens[slot] = gen
	if g.free[slot] {
		delete(g.free, slot)
		for i, s := range g.pool {
			if s == slot {
				g.pool = append(g.pool[:i], g.pool[i+1:]...)
				break
			}
		}
	}
	for g.next <= slot {
		if _, ok := g.gens[g.next]; !ok {
			g.pool = append(g.pool, g.next)
			g.free[g.next] = true
			g.gens[g.next] = 0
		}
		g.next++
	}
	return true
}

// release returns the slot of id to the pool. The slot moves to its next
// generation right away, which makes id and every copy of it stale.
func (g *idGen) release(id RowID) {
	slot := id.Slot()
	g.gens[slot]++
	g.pool = append(g.pool, slot)
	g.free[slot] = true
}

// current reports whether id carries the generation of a slot that is
// not waiting in the pool.
func (g *idGen) current(id RowID) bool {
	gen, ok := g.gens[id.Slot()]
	return ok && gen == id.Generation() && !g.free[id.Slot()]
}

// latest returns the id carrying the current generation of slot.
func (g *idGen) latest(slot uint32) (RowID, bool) {
	gen, ok := g.gens[slot]
	return makeRowID(slot, gen), ok
}
