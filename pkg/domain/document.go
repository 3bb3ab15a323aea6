package domain

// Document is the single root state object persisted as one unit. Slice order
// is insertion order and is the order returned by list operations.
type Document struct {
	Users      []User      `json:"users"`
	Containers []Container `json:"containers"`
	Items      []Item      `json:"items"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	cp := Document{
		Users:      make([]User, 0, len(d.Users)),
		Containers: make([]Container, 0, len(d.Containers)),
		Items:      make([]Item, 0, len(d.Items)),
	}
	for _, u := range d.Users {
		cp.Users = append(cp.Users, CloneUser(u))
	}
	for _, c := range d.Containers {
		cp.Containers = append(cp.Containers, CloneContainer(c))
	}
	for _, i := range d.Items {
		cp.Items = append(cp.Items, CloneItem(i))
	}
	return cp
}
