package catalog

func quota(signLanguage, braille, mobility, cognitive int) map[ResourceKind]int {
	return map[ResourceKind]int{
		ResourceSignLanguage: signLanguage,
		ResourceBraille:      braille,
		ResourceMobility:     mobility,
		ResourceCognitive:    cognitive,
	}
}

// DefaultDefinition describes the reference clinic.
func DefaultDefinition() Definition {
	return Definition{
		Specialties: []string{
			"psychiatry",
			"physiotherapy",
			"nutrition",
			"cardiology",
			"dermatology",
			"gynecology",
			"ophthalmology",
			"pediatrics",
			"endocrinology",
			"dentistry",
			"general practice",
		},
		Slots: []Slot{
			{Label: "07-09", Period: PeriodMorning},
			{Label: "09-11", Period: PeriodMorning, Peak: true},
			{Label: "11-13", Period: PeriodMorning},
			{Label: "13-15", Period: PeriodAfternoon, Peak: true},
			{Label: "15-17", Period: PeriodAfternoon, Peak: true},
			{Label: "17-19", Period: PeriodEvening},
			{Label: "19-21", Period: PeriodEvening},
		},
		Capacity: map[string]int{
			"07-09": 5,
			"09-11": 8,
			"11-13": 6,
			"13-15": 7,
			"15-17": 6,
			"17-19": 5,
			"19-21": 5,
		},
		Quotas: map[string]map[ResourceKind]int{
			"07-09": quota(2, 1, 1, 1),
			"09-11": quota(2, 1, 1, 1),
			"11-13": quota(1, 2, 1, 1),
			"13-15": quota(2, 1, 2, 1),
			"15-17": quota(1, 1, 2, 1),
			"17-19": quota(1, 1, 1, 1),
			"19-21": quota(1, 1, 1, 1),
		},
		Practitioners: []Practitioner{
			{Name: "Dr. Ana", Specialties: []string{"psychiatry"}, Online: true, Slots: []string{"07-09", "09-11", "11-13", "13-15", "15-17"}},
			{Name: "Dr. Bruno", Specialties: []string{"psychiatry"}, Online: true, Slots: []string{"11-13", "13-15", "17-19", "19-21"}},
			{Name: "Dr. Carla", Specialties: []string{"cardiology"}, Online: false, Slots: []string{"09-11", "13-15", "15-17", "17-19"}},
			{Name: "Dr. Daniel", Specialties: []string{"physiotherapy"}, Online: true, Slots: []string{"09-11", "11-13", "15-17", "19-21"}},
			{Name: "Dr. Elisa", Specialties: []string{"nutrition"}, Online: true, Slots: []string{"09-11", "11-13", "13-15", "15-17"}},
			{Name: "Dr. Felipe", Specialties: []string{"cardiology"}, Online: false, Slots: []string{"13-15", "15-17", "17-19"}},
			{Name: "Dr. Gabriela", Specialties: []string{"dermatology"}, Online: true, Slots: []string{"09-11", "11-13", "13-15"}},
			{Name: "Dr. Helena", Specialties: []string{"gynecology"}, Online: false, Slots: []string{"09-11", "13-15", "15-17", "17-19"}},
			{Name: "Dr. Igor", Specialties: []string{"ophthalmology"}, Online: true, Slots: []string{"11-13", "13-15", "17-19", "19-21"}},
			{Name: "Dr. Juliana", Specialties: []string{"pediatrics"}, Online: true, Slots: []string{"07-09", "09-11", "11-13", "13-15"}},
			{Name: "Dr. Kevin", Specialties: []string{"endocrinology"}, Online: false, Slots: []string{"13-15", "15-17", "17-19"}},
			{Name: "Dr. Laura", Specialties: []string{"dentistry"}, Online: true, Slots: []string{"07-09", "09-11", "11-13", "15-17", "19-21"}},
			{Name: "Dr. Carlos Mendes", Specialties: []string{"general practice"}, Online: false, Slots: []string{"09-11", "11-13", "13-15", "15-17"}},
			{Name: "Dr. Sofia Lima", Specialties: []string{"general practice"}, Online: true, Slots: []string{"07-09", "09-11", "13-15", "17-19"}},
		},
	}
}

// Default builds the reference clinic catalog.
func Default() *Catalog {
	c, err := New(DefaultDefinition())
	if err != nil {
		panic("catalog: invalid default definition: " + err.Error())
	}
	return c
}
