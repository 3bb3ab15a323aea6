package core

// SeedCourses returns the default course-portal document: two ownerless
// courses with empty rosters, no users and no items. Each call returns a
// fresh deep value so callers can mutate the result freely.
func SeedCourses() Document {
	return Document{
		Users: []User{},
		Containers: []Container{
			{
				Base:        Base{ID: "c1"},
				Title:       "Intro to Web",
				Description: "HTML, CSS, JS basics",
				MemberIDs:   []string{},
			},
			{
				Base:        Base{ID: "c2"},
				Title:       "Data Structures",
				Description: "Arrays, LinkedList, Trees",
				MemberIDs:   []string{},
			},
		},
		Items: []Item{},
	}
}

// SeedBoards returns the travel-board variant of the default document: two
// ownerless boards ready to receive destinations.
func SeedBoards() Document {
	return Document{
		Users: []User{},
		Containers: []Container{
			{
				Base:        Base{ID: "b1"},
				Title:       "Summer Trip",
				Description: "Warm-weather ideas",
				MemberIDs:   []string{},
			},
			{
				Base:        Base{ID: "b2"},
				Title:       "Weekend Getaways",
				Description: "Short hops close to home",
				MemberIDs:   []string{},
			},
		},
		Items: []Item{},
	}
}
