package escher

import (
	"strconv"
	"strings"
)

// Find resolves an object path to a shape container.
//
//	@name    shape by name
//	#id      shape by shape id
//	/i/j     1-based indexes from the patriarch's shapes, then group children
//	i/j      first index into the anchored shapes, then group children
func (d *Drawing) Find(path string) (*Container, error) {
	switch {
	case path == "":
		return nil, newInvalidDataError("empty object path")
	case path[0] == '@':
		if c, ok := d.Cache.ShapeByName(path[1:]); ok {
			return topShape(c), nil
		}
		return nil, newInvalidDataError("no shape named %q", path[1:])
	case path[0] == '#':
		id, err := strconv.ParseUint(path[1:], 10, 32)
		if err != nil {
			return nil, newInvalidDataError("bad shape id in %q", path)
		}
		if c, ok := d.Cache.Shape(uint32(id)); ok {
			return topShape(c), nil
		}
		return nil, newInvalidDataError("no shape with id %d", id)
	}

	idx, err := parseIndexes(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, err
	}
	var cur *Container
	if path[0] == '/' {
		p := d.Patriarch()
		if p == nil {
			return nil, newInvalidDataError("drawing has no patriarch")
		}
		cur, err = groupMember(p, idx[0])
	} else {
		shapes := d.Shapes()
		if idx[0] > len(shapes) {
			return nil, newInvalidDataError("object index %d out of %d", idx[0], len(shapes))
		}
		cur = shapes[idx[0]-1]
	}
	for _, i := range idx[1:] {
		if err != nil {
			break
		}
		if cur.Tag() != TagSpgrContainer {
			return nil, newInvalidDataError("%q: not a group", path)
		}
		cur, err = groupMember(cur, i)
	}
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func parseIndexes(s string) ([]int, error) {
	parts := strings.Split(s, "/")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		i, err := strconv.Atoi(p)
		if err != nil || i < 1 {
			return nil, newInvalidDataError("bad object index %q", p)
		}
		out = append(out, i)
	}
	return out, nil
}

// groupMember returns the i-th member of a group. The group's own shape
// container is not a member.
func groupMember(g *Container, i int) (*Container, error) {
	n := g.Len() - 1
	if i > n {
		return nil, newInvalidDataError("object index %d out of %d", i, n)
	}
	c := g.Child(i).asContainer()
	if c == nil {
		return nil, newInvalidDataError("object %d is not a shape", i)
	}
	return c, nil
}

// topShape maps the shape container of a group to the group itself.
func topShape(sp *Container) *Container {
	if g := sp.Parent(); g != nil && g.Tag() == TagSpgrContainer && g.IndexOf(sp.self()) == 0 {
		if g.Parent() != nil && g.Parent().Tag() == TagSpgrContainer {
			return g
		}
	}
	return sp
}
