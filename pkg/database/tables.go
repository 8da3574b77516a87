package database

import "fmt"

func col(name, typ string) Column {
	return Column{Name: name, Type: typ}
}

func opt(name, typ string) Column {
	return Column{Name: name, Type: typ, Nullable: true}
}

func def(name, typ, value string) Column {
	return Column{Name: name, Type: typ, Default: value}
}

func id() Column {
	return def("id", "UUID", "gen_random_uuid()")
}

func fk(name string, cols []string, ref string, refCols []string, onDelete Action) ForeignKey {
	return ForeignKey{Name: name, Columns: cols, RefTable: ref, RefColumns: refCols, OnDelete: onDelete}
}

func ref(table, column, parent string, onDelete Action) ForeignKey {
	return fk(fmt.Sprintf("fk_%s_%s", table, column), []string{column}, parent, []string{"id"}, onDelete)
}

func unique(table string, cols ...string) Unique {
	name := "uq_" + table
	for _, c := range cols {
		name += "_" + c
	}
	return Unique{Name: name, Columns: cols}
}

func timestamps(soft bool) []Column {
	cols := []Column{
		def("created_at", "TIMESTAMPTZ", "NOW()"),
		def("updated_at", "TIMESTAMPTZ", "NOW()"),
	}
	if soft {
		cols = append(cols, opt("deleted_at", "TIMESTAMPTZ"))
	}
	return cols
}

func with(cols []Column, extra ...Column) []Column {
	out := make([]Column, 0, len(cols)+len(extra))
	out = append(out, cols...)
	return append(out, extra...)
}

// profileTable builds a role profile table keyed by account. The composite
// key (account_id, role) can only match an account of the same role.
func profileTable(name, role string, cols ...Column) Table {
	columns := []Column{
		col("account_id", "UUID"),
		def("role", "TEXT", fmt.Sprintf("'%s'", role)),
	}
	columns = append(columns, cols...)
	return Table{
		Name:       name,
		Columns:    with(columns, timestamps(true)...),
		PrimaryKey: []string{"account_id"},
		Checks:     []string{fmt.Sprintf("role = '%s'", role)},
		ForeignKeys: []ForeignKey{
			fk("fk_"+name+"_account", []string{"account_id", "role"}, "accounts", []string{"id", "role"}, Cascade),
		},
		SoftDelete: true,
	}
}

func tables() []Table {
	students := profileTable("students", "student",
		col("student_code", "TEXT"),
		opt("class_id", "UUID"),
		opt("gpa", "NUMERIC(3,2)"),
		opt("enrollment_date", "DATE"),
		opt("phone", "TEXT"),
		opt("address", "TEXT"),
	)
	students.Uniques = []Unique{unique("students", "student_code")}
	students.ForeignKeys = append(students.ForeignKeys, ref("students", "class_id", "classes", SetNull))
	students.Indexes = []Index{{Name: "idx_students_class", Columns: []string{"class_id"}}}

	lecturers := profileTable("lecturers", "lecturer",
		col("lecturer_code", "TEXT"),
		opt("department", "TEXT"),
		opt("degree", "TEXT"),
		opt("hire_date", "DATE"),
		opt("phone", "TEXT"),
	)
	lecturers.Uniques = []Unique{unique("lecturers", "lecturer_code")}

	admins := profileTable("admins", "admin",
		col("admin_code", "TEXT"),
		opt("department", "TEXT"),
	)
	admins.Uniques = []Unique{unique("admins", "admin_code")}

	officers := profileTable("training_officers", "training_officer",
		col("staff_code", "TEXT"),
		opt("department", "TEXT"),
	)
	officers.Uniques = []Unique{unique("training_officers", "staff_code")}

	return []Table{
		{
			Name: "accounts",
			Columns: with([]Column{
				id(),
				col("email", "TEXT"),
				opt("password_hash", "TEXT"),
				col("name", "TEXT"),
				col("role", "TEXT"),
				opt("google_id", "TEXT"),
				def("status", "TEXT", "'active'"),
				opt("last_login", "TIMESTAMPTZ"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Uniques: []Unique{
				unique("accounts", "email"),
				unique("accounts", "google_id"),
				unique("accounts", "id", "role"),
			},
			Checks: []string{
				"role IN ('student','lecturer','admin','training_officer')",
				"status IN ('active','inactive','suspended')",
			},
		},
		{
			Name: "programs",
			Columns: with([]Column{
				id(),
				col("code", "TEXT"),
				col("name", "TEXT"),
				def("duration_years", "INT", "4"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Uniques:    []Unique{unique("programs", "code")},
			Checks:     []string{"duration_years > 0"},
		},
		{
			Name: "semesters",
			Columns: with([]Column{
				id(),
				col("program_id", "UUID"),
				col("code", "TEXT"),
				col("name", "TEXT"),
				col("start_date", "DATE"),
				col("end_date", "DATE"),
			}, timestamps(true)...),
			PrimaryKey:  []string{"id"},
			Uniques:     []Unique{unique("semesters", "program_id", "code")},
			Checks:      []string{"end_date >= start_date"},
			ForeignKeys: []ForeignKey{ref("semesters", "program_id", "programs", Cascade)},
			SoftDelete:  true,
		},
		{
			Name: "subjects",
			Columns: with([]Column{
				id(),
				col("semester_id", "UUID"),
				col("code", "TEXT"),
				col("name", "TEXT"),
				def("credits", "INT", "0"),
				def("theory_hours", "INT", "0"),
				def("practice_hours", "INT", "0"),
			}, timestamps(true)...),
			PrimaryKey:  []string{"id"},
			Uniques:     []Unique{unique("subjects", "code")},
			Checks:      []string{"credits >= 0", "theory_hours >= 0", "practice_hours >= 0"},
			ForeignKeys: []ForeignKey{ref("subjects", "semester_id", "semesters", Cascade)},
			SoftDelete:  true,
		},
		{
			Name: "classes",
			Columns: with([]Column{
				id(),
				col("program_id", "UUID"),
				col("code", "TEXT"),
				col("name", "TEXT"),
				opt("cohort", "TEXT"),
				def("student_count", "INT", "0"),
			}, timestamps(true)...),
			PrimaryKey:  []string{"id"},
			Uniques:     []Unique{unique("classes", "code")},
			ForeignKeys: []ForeignKey{ref("classes", "program_id", "programs", Cascade)},
			SoftDelete:  true,
		},
		students,
		lecturers,
		admins,
		officers,
		{
			Name: "rooms",
			Columns: with([]Column{
				id(),
				col("code", "TEXT"),
				col("name", "TEXT"),
				def("capacity", "INT", "0"),
				def("room_type", "TEXT", "'theory'"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Uniques:    []Unique{unique("rooms", "code")},
			Checks:     []string{"capacity >= 0", "room_type IN ('theory','lab','hall')"},
		},
		{
			Name: "time_slots",
			Columns: with([]Column{
				id(),
				col("code", "TEXT"),
				col("start_time", "TIME"),
				col("end_time", "TIME"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Uniques:    []Unique{unique("time_slots", "code")},
			Checks:     []string{"end_time > start_time"},
		},
		{
			Name: "class_schedules",
			Columns: with([]Column{
				id(),
				col("class_id", "UUID"),
				col("subject_id", "UUID"),
				opt("lecturer_id", "UUID"),
				opt("room_id", "UUID"),
				opt("time_slot_id", "UUID"),
				col("schedule_date", "DATE"),
				def("status", "TEXT", "'scheduled'"),
				opt("note", "TEXT"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Checks:     []string{"status IN ('scheduled','canceled')"},
			ForeignKeys: []ForeignKey{
				ref("class_schedules", "class_id", "classes", Cascade),
				ref("class_schedules", "subject_id", "subjects", Cascade),
				fk("fk_class_schedules_lecturer_id", []string{"lecturer_id"}, "lecturers", []string{"account_id"}, SetNull),
				ref("class_schedules", "room_id", "rooms", SetNull),
				ref("class_schedules", "time_slot_id", "time_slots", SetNull),
			},
			Indexes: []Index{
				{Name: "idx_class_schedules_date", Columns: []string{"schedule_date"}},
				{Name: "idx_class_schedules_lecturer", Columns: []string{"lecturer_id", "schedule_date"}},
			},
		},
		{
			Name: "lecturer_assignments",
			Columns: with([]Column{
				id(),
				col("lecturer_id", "UUID"),
				col("subject_id", "UUID"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Uniques:    []Unique{unique("lecturer_assignments", "lecturer_id", "subject_id")},
			ForeignKeys: []ForeignKey{
				fk("fk_lecturer_assignments_lecturer_id", []string{"lecturer_id"}, "lecturers", []string{"account_id"}, Cascade),
				ref("lecturer_assignments", "subject_id", "subjects", Cascade),
			},
		},
		{
			Name: "busy_slots",
			Columns: with([]Column{
				id(),
				col("lecturer_id", "UUID"),
				col("time_slot_id", "UUID"),
				col("day_of_week", "SMALLINT"),
				opt("reason", "TEXT"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Uniques:    []Unique{unique("busy_slots", "lecturer_id", "time_slot_id", "day_of_week")},
			Checks:     []string{"day_of_week BETWEEN 1 AND 7"},
			ForeignKeys: []ForeignKey{
				fk("fk_busy_slots_lecturer_id", []string{"lecturer_id"}, "lecturers", []string{"account_id"}, Cascade),
				ref("busy_slots", "time_slot_id", "time_slots", Cascade),
			},
		},
		{
			Name: "semester_busy_slots",
			Columns: with([]Column{
				id(),
				col("lecturer_id", "UUID"),
				col("semester_id", "UUID"),
				col("time_slot_id", "UUID"),
				col("busy_date", "DATE"),
				opt("reason", "TEXT"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Uniques:    []Unique{unique("semester_busy_slots", "lecturer_id", "time_slot_id", "busy_date")},
			ForeignKeys: []ForeignKey{
				fk("fk_semester_busy_slots_lecturer_id", []string{"lecturer_id"}, "lecturers", []string{"account_id"}, Cascade),
				ref("semester_busy_slots", "semester_id", "semesters", Cascade),
				ref("semester_busy_slots", "time_slot_id", "time_slots", Cascade),
			},
		},
		{
			Name: "schedule_change_requests",
			Columns: with([]Column{
				id(),
				col("class_schedule_id", "UUID"),
				col("lecturer_id", "UUID"),
				col("request_type", "TEXT"),
				opt("new_date", "DATE"),
				opt("new_time_slot_id", "UUID"),
				opt("new_room_id", "UUID"),
				opt("substitute_lecturer_id", "UUID"),
				col("reason", "TEXT"),
				def("status", "TEXT", "'PENDING'"),
				opt("reviewed_by", "UUID"),
				opt("review_note", "TEXT"),
				opt("reviewed_at", "TIMESTAMPTZ"),
				opt("approved_at", "TIMESTAMPTZ"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Checks: []string{
				"request_type IN ('reschedule','cancel','room_change','time_change','substitute')",
				"status IN ('PENDING','APPROVED','REJECTED','CANCELED','EXPIRED')",
				"(approved_at IS NULL) = (status <> 'APPROVED')",
			},
			ForeignKeys: []ForeignKey{
				ref("schedule_change_requests", "class_schedule_id", "class_schedules", Cascade),
				fk("fk_schedule_change_requests_lecturer_id", []string{"lecturer_id"}, "lecturers", []string{"account_id"}, Cascade),
				ref("schedule_change_requests", "new_time_slot_id", "time_slots", SetNull),
				ref("schedule_change_requests", "new_room_id", "rooms", SetNull),
				fk("fk_schedule_change_requests_substitute", []string{"substitute_lecturer_id"}, "lecturers", []string{"account_id"}, SetNull),
				ref("schedule_change_requests", "reviewed_by", "accounts", SetNull),
			},
			Indexes: []Index{{Name: "idx_schedule_change_requests_status", Columns: []string{"status"}}},
		},
		{
			Name: "notifications",
			Columns: with([]Column{
				id(),
				col("title", "TEXT"),
				col("content", "TEXT"),
				def("type", "TEXT", "'info'"),
				def("recipients", "TEXT", "'all'"),
				opt("created_by", "UUID"),
				opt("expires_at", "TIMESTAMPTZ"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Checks: []string{
				"type IN ('info','warning','schedule','system')",
				"recipients IN ('all','students','lecturers','training_officers','admins')",
			},
			ForeignKeys: []ForeignKey{ref("notifications", "created_by", "accounts", SetNull)},
		},
		{
			Name: "user_notifications",
			Columns: with([]Column{
				id(),
				col("account_id", "UUID"),
				col("notification_id", "UUID"),
				def("is_read", "BOOLEAN", "FALSE"),
				opt("read_at", "TIMESTAMPTZ"),
			}, timestamps(false)...),
			PrimaryKey: []string{"id"},
			Uniques:    []Unique{unique("user_notifications", "account_id", "notification_id")},
			Checks:     []string{"(read_at IS NULL) = (NOT is_read)"},
			ForeignKeys: []ForeignKey{
				ref("user_notifications", "account_id", "accounts", Cascade),
				ref("user_notifications", "notification_id", "notifications", Cascade),
			},
		},
		{
			Name: "refresh_tokens",
			Columns: with([]Column{
				id(),
				col("account_id", "UUID"),
				col("token", "TEXT"),
				col("expires_at", "TIMESTAMPTZ"),
				opt("ip_address", "TEXT"),
				opt("user_agent", "TEXT"),
				def("status", "TEXT", "'active'"),
				opt("revoked_at", "TIMESTAMPTZ"),
				opt("access_jti", "TEXT"),
				opt("access_expires_at", "TIMESTAMPTZ"),
			}, timestamps(false)...),
			PrimaryKey:  []string{"id"},
			Uniques:     []Unique{unique("refresh_tokens", "token")},
			Checks:      []string{"status IN ('active','revoked')"},
			ForeignKeys: []ForeignKey{ref("refresh_tokens", "account_id", "accounts", Cascade)},
			Indexes: []Index{
				{Name: ActiveRefreshTokenIndex, Columns: []string{"account_id"}, Unique: true, Where: "status = 'active'"},
			},
		},
		{
			Name: "blacklisted_tokens",
			Columns: with([]Column{
				id(),
				col("jti", "TEXT"),
				col("account_id", "UUID"),
				col("expires_at", "TIMESTAMPTZ"),
				opt("reason", "TEXT"),
			}, timestamps(false)...),
			PrimaryKey:  []string{"id"},
			Uniques:     []Unique{unique("blacklisted_tokens", "jti")},
			ForeignKeys: []ForeignKey{ref("blacklisted_tokens", "account_id", "accounts", Cascade)},
			Indexes:     []Index{{Name: "idx_blacklisted_tokens_expires", Columns: []string{"expires_at"}}},
		},
	}
}

// Constraint names surfaced to callers that classify unique violations.
const (
	AccountsEmailConstraint    = "uq_accounts_email"
	AccountsGoogleIDConstraint = "uq_accounts_google_id"
	ActiveRefreshTokenIndex    = "uq_refresh_tokens_active_account"
)
