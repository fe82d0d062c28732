package xml

// Detach removes id from its parent's child list. The node and its subtree
// stay in the arena and can be re-attached.
func (t *Tree) Detach(id NodeID) {
	n := t.Node(id)
	if n == nil || n.Parent == None {
		return
	}
	p := &t.nodes[n.Parent]
	for i, c := range p.Children {
		if c == id {
			p.Children = append(p.Children[:i:i], p.Children[i+1:]...)
			break
		}
	}
	n.Parent = None
}

// AppendChild attaches child as the last child of parent, detaching it from
// its previous position first.
func (t *Tree) AppendChild(parent, child NodeID) {
	t.Detach(child)
	t.nodes[child].Parent = parent
	t.nodes[parent].Children = append(t.nodes[parent].Children, child)
}

// InsertChild attaches child at position index of parent's child list.
// Indices past the end append.
func (t *Tree) InsertChild(parent NodeID, index int, child NodeID) {
	t.Detach(child)
	p := &t.nodes[parent]
	if index < 0 {
		index = 0
	}
	if index >= len(p.Children) {
		p.Children = append(p.Children, child)
	} else {
		p.Children = append(p.Children[:index], append([]NodeID{child}, p.Children[index:]...)...)
	}
	t.nodes[child].Parent = parent
}

// InsertBefore attaches child immediately before ref.
func (t *Tree) InsertBefore(ref, child NodeID) {
	parent := t.Parent(ref)
	if parent == None {
		return
	}
	t.Detach(child)
	for i, c := range t.nodes[parent].Children {
		if c == ref {
			t.InsertChild(parent, i, child)
			return
		}
	}
}

// SetChildren replaces the child list of parent. Previous children are
// detached; ids already attached elsewhere are moved.
func (t *Tree) SetChildren(parent NodeID, ids []NodeID) {
	for _, c := range t.nodes[parent].Children {
		t.nodes[c].Parent = None
	}
	t.nodes[parent].Children = nil
	for _, c := range ids {
		t.AppendChild(parent, c)
	}
}

// RemoveChildren detaches every child of parent.
func (t *Tree) RemoveChildren(parent NodeID) {
	t.SetChildren(parent, nil)
}

// SetAttr sets the attribute with the given local name, appending an
// unprefixed attribute when none exists.
func (t *Tree) SetAttr(id NodeID, local, value string) {
	n := &t.nodes[id]
	for i, a := range n.Attrs {
		if a.Local == local && !a.IsNamespaceDecl() {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Local: local, Value: value})
}

// RemoveAttr deletes the attribute with the given local name and reports
// whether it existed.
func (t *Tree) RemoveAttr(id NodeID, local string) bool {
	n := &t.nodes[id]
	for i, a := range n.Attrs {
		if a.Local == local && !a.IsNamespaceDecl() {
			n.Attrs = append(n.Attrs[:i:i], n.Attrs[i+1:]...)
			return true
		}
	}
	return false
}

// SetData replaces the character data of a text, comment or CDATA node.
func (t *Tree) SetData(id NodeID, data string) {
	t.nodes[id].Data = data
}

// NewElement adds a detached element to the arena.
func (t *Tree) NewElement(prefix, local, space string, attrs ...Attr) NodeID {
	return t.add(Node{
		Kind:   KindElement,
		Prefix: prefix,
		Local:  local,
		Space:  space,
		Attrs:  append([]Attr(nil), attrs...),
	}, None)
}

// NewText adds a detached text node to the arena.
func (t *Tree) NewText(data string) NodeID {
	return t.add(Node{Kind: KindText, Data: data}, None)
}

// Clone returns a deep copy of the tree. Node ids are identical in the copy.
func (t *Tree) Clone() *Tree {
	out := &Tree{nodes: make([]Node, len(t.nodes))}
	for i, n := range t.nodes {
		n.Attrs = append([]Attr(nil), n.Attrs...)
		n.Children = append([]NodeID(nil), n.Children...)
		out.nodes[i] = n
	}
	return out
}

// CopySubtree duplicates the subtree at id inside the same tree and returns
// the detached copy.
func (t *Tree) CopySubtree(id NodeID) NodeID {
	return t.Import(t, id)
}

// Import copies the subtree at id of src into t and returns the detached
// copy. src may be t itself.
func (t *Tree) Import(src *Tree, id NodeID) NodeID {
	n := src.nodes[id]
	cp := Node{
		Kind:   n.Kind,
		Prefix: n.Prefix,
		Local:  n.Local,
		Space:  n.Space,
		Attrs:  append([]Attr(nil), n.Attrs...),
		Data:   n.Data,
	}
	children := append([]NodeID(nil), n.Children...)
	out := t.add(cp, None)
	for _, c := range children {
		cc := t.Import(src, c)
		t.nodes[cc].Parent = out
		t.nodes[out].Children = append(t.nodes[out].Children, cc)
	}
	return out
}
