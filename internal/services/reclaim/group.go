// Copyright (c) 2025-2026, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package reclaim

// Groups maps inode ids to their InodeGroup, remembering first-seen order
// so reports are reproducible.
type Groups struct {
	order  []string
	byNode map[string]*InodeGroup
}

// GroupByInode groups handles by inode in a single pass. Every handle ends
// up in exactly one group; members keep input order.
func GroupByInode(handles []OpenHandle) *Groups {
	g := &Groups{byNode: make(map[string]*InodeGroup)}
	for _, h := range handles {
		group, ok := g.byNode[h.Inode]
		if !ok {
			group = &InodeGroup{Inode: h.Inode}
			g.byNode[h.Inode] = group
			g.order = append(g.order, h.Inode)
		}
		group.Members = append(group.Members, h)
		group.Size += h.Size
	}
	return g
}

// Len returns the number of distinct inodes.
func (g *Groups) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// Get returns the group for inode, or nil.
func (g *Groups) Get(inode string) *InodeGroup {
	if g == nil {
		return nil
	}
	return g.byNode[inode]
}

// All returns the groups in first-seen order.
func (g *Groups) All() []*InodeGroup {
	if g == nil {
		return nil
	}
	out := make([]*InodeGroup, 0, len(g.order))
	for _, inode := range g.order {
		out = append(out, g.byNode[inode])
	}
	return out
}

// Size is the aggregate size over every group.
func (g *Groups) Size() int64 {
	var total int64
	for _, group := range g.All() {
		total += group.Size
	}
	return total
}

// Handles is the total number of grouped handles.
func (g *Groups) Handles() int {
	n := 0
	for _, group := range g.All() {
		n += len(group.Members)
	}
	return n
}
