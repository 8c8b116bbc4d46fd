package catalog

import "hemophilia-registry-api/internal/schema"

const (
	OrgColumn = "organization_code"

	// OrgRefLabel is the import header that names the organization of a row.
	OrgRefLabel = "HMHI cabang"

	OrganizationsTable = "organizations"
	HospitalsTable     = "hospitals"
	AgeGroupsTable     = "age_groups"
	AgeSummaryTable    = "age_group_summary"
)

var (
	ageGroups = []string{"0-4", "5-13", "14-18", "19-44", ">45", "Tidak ada data usia"}

	disorders = []string{
		"Hemofilia A",
		"Hemofilia B",
		"Hemofilia tipe lain/tidak dikenal",
		"Terduga Hemofilia/diagnosis belum ditegakkan",
		"VWD",
		"Kelainan pembekuan darah lain",
		"Total",
	}

	severityRows = []string{
		"Hemofilia A laki-laki",
		"Hemofilia B laki-laki",
		"Total Laki-laki",
		"Hemofilia A perempuan",
		"Hemofilia B perempuan",
		"Total Perempuan",
	}

	severeChildRows = []string{
		"Hemofilia A Laki-laki",
		"Hemofilia A Perempuan",
		"Hemofilia B Laki-laki",
		"Hemofilia B Perempuan",
		"Total",
	}

	vwdSevereRows = []string{
		"Penyandang VWD Laki-Laki",
		"Penyandang VWD Perempuan",
		"Penyandang VWD Tanpa Data Jenis Kelamin",
		"Total",
	}

	products = []string{
		"Plasma (FFP)",
		"Cryoprecipitate",
		"Konsentrat (plasma derived)",
		"Konsentrat (rekombinan)",
		"Konsentrat (prolonged half life)",
		"Prothrombin Complex",
		"DDAVP",
		"Emicizumab (Hemlibra)",
		"Konsentrat Bypassing Agent",
	}

	hemophiliaTypes = []string{
		"Hemofilia A",
		"Hemofilia B",
		"Hemofilia tipe lain",
		"vWD",
		"Terduga Hemofilia",
		"Kelainan Pembekuan Darah Lain",
	}

	severeCategories = []string{"Hemofilia A Berat", "Hemofilia B Berat", "Hemofilia tipe lain", "vWD"}

	mortalityCauses = []string{
		"Hemofilia A",
		"Hemofilia B",
		"Hemofilia tipe lain",
		"Terduga hemofilia",
		"vWD",
		"Kelainan pembekuan darah lain",
	}

	availability   = []string{"Tersedia", "Tidak Tersedia"}
	yesNo          = []string{"Ya", "Tidak"}
	treatmentTypes = []string{"Prophylaxis", "On Demand"}
	careSettings   = []string{"Rawat Jalan", "Rawat Inap"}
	estimateTypes  = []string{"Estimasi", "Data real"}
	donationTypes  = []string{"Konsentrat Faktor VIII", "Konsentrat Faktor IX", "Bypassing Agent"}
	caseLabels     = []string{"Kasus lama (sebelum 2024)", "Kasus baru (2024/2025)"}
	inhibitorRows  = []string{"Hemofilia A", "Hemofilia B"}
)

func text(name, label string) schema.Column {
	return schema.Column{Name: name, Kind: schema.Text, Label: label}
}

func enum(name, label string, values []string) schema.Column {
	return schema.Column{Name: name, Kind: schema.Text, Label: label, Enum: values, Required: true}
}

func count(name, label string) schema.Column {
	return schema.Column{Name: name, Kind: schema.Integer, Label: label}
}

func amount(name, label string) schema.Column {
	return schema.Column{Name: name, Kind: schema.Real, Label: label}
}

func percent(name, label string) schema.Column {
	return schema.Column{Name: name, Kind: schema.Real, Label: label, Max: 100}
}

func optional(c schema.Column) schema.Column {
	c.Required = false
	return c
}

func required(c schema.Column) schema.Column {
	c.Required = true
	return c
}

var Organizations = schema.Table{
	Name:      OrganizationsTable,
	Title:     "Identitas Organisasi",
	OrgColumn: OrgColumn,
	Directory: true,
	Columns: []schema.Column{
		required(text("branch_name", "HMHI cabang")),
		text("filled_by", "Diisi oleh"),
		text("position", "Jabatan"),
		text("phone", "No. Telp"),
		text("email", "Email"),
		text("data_source", "Sumber Data"),
		text("report_date", "Tanggal"),
		text("coverage_area", "Kota/Provinsi cakupan cabang"),
		text("note", "Catatan"),
	},
	Unique: []string{OrgColumn, "branch_name"},
}

var Hospitals = schema.Table{
	Name:      HospitalsTable,
	Title:     "Rumah Sakit",
	Directory: true,
	Columns: []schema.Column{
		text("code", "Kode RS"),
		required(text("name", "Nama Rumah Sakit")),
		text("city", "Kota"),
		text("province", "Provinsi"),
		text("type", "Tipe RS"),
		text("class", "Kelas RS"),
		text("contact", "Kontak"),
	},
	Unique: []string{"name"},
}

var records = []schema.Table{
	{
		Name:      "patient_counts",
		Title:     "Jumlah Individu Hemofilia",
		OrgColumn: OrgColumn,
		Columns: []schema.Column{
			count("total_ab", "Jumlah total penyandang hemofilia A dan B"),
			count("other_hemophilia", "Hemofilia lain/tidak dikenal"),
			count("suspected", "Terduga hemofilia/diagnosis belum ditegakkan"),
			count("vwd", "Von Willebrand Disease (vWD)"),
			count("other_disorders", "Kelainan pembekuan darah genetik lainnya"),
		},
	},
	{
		Name:           AgeGroupsTable,
		Title:          "Kelompok Usia",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "age_group",
		Columns: []schema.Column{
			enum("age_group", "Kelompok Usia", ageGroups),
			count("ha_mild", "Hemofilia A - Ringan"),
			count("ha_moderate", "Hemofilia A - Sedang"),
			count("ha_severe", "Hemofilia A - Berat"),
			count("hb_mild", "Hemofilia B - Ringan"),
			count("hb_moderate", "Hemofilia B - Sedang"),
			count("hb_severe", "Hemofilia B - Berat"),
			count("other_type", "Hemofilia Tipe Lain"),
			count("vwd_type1", "vWD - Tipe 1"),
			count("vwd_type2", "vWD - Tipe 2"),
			count("vwd_type3", "vWD - Tipe 3"),
		},
	},
	{
		Name:           "vwd_age_gender",
		Title:          "Penyandang vWD",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "age_group",
		Columns: []schema.Column{
			enum("age_group", "Kelompok Usia", ageGroups),
			count("male", "Laki-Laki"),
			count("female", "Perempuan"),
			count("gender_unknown", "Jenis Kelamin Tidak Terdata"),
			count("total", "Total"),
		},
	},
	{
		Name:            "gender_by_disorder",
		Title:           "Jenis Kelamin per Kelainan",
		OrgColumn:       OrgColumn,
		RowLabelColumn:  "disorder",
		TotalFlagColumn: "is_total_row",
		TotalLabels:     []string{"Total"},
		Columns: []schema.Column{
			enum("disorder", "Kelainan", disorders),
			count("male", "Laki-laki"),
			count("female", "Perempuan"),
			count("gender_unknown", "Tidak ada data gender"),
			count("total", "Total"),
			count("is_total_row", "Baris total"),
		},
	},
	{
		Name:            "severity_by_gender",
		Title:           "Tingkat Hemofilia & Jenis Kelamin",
		OrgColumn:       OrgColumn,
		RowLabelColumn:  "row_label",
		TotalFlagColumn: "is_total_row",
		TotalLabels:     []string{"Total Laki-laki", "Total Perempuan"},
		Columns: []schema.Column{
			enum("row_label", "Baris", severityRows),
			count("carrier", "Carrier (>40%)"),
			count("mild", "Ringan (>5%)"),
			count("moderate", "Sedang (1-5%)"),
			count("severe", "Berat (<1%)"),
			count("unknown", "Tidak diketahui"),
			count("total", "Total"),
			count("is_total_row", "Baris total"),
		},
	},
	{
		Name:           "severe_children",
		Title:          "Anak Hemofilia Berat",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "category",
		Columns: []schema.Column{
			enum("category", "Kategori", severeChildRows),
			count("severe", "Berat (<1%)"),
		},
	},
	{
		Name:           "vwd_severe",
		Title:          "Penyandang vWD Berat",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "row_label",
		Columns: []schema.Column{
			enum("row_label", "Baris", vwdSevereRows),
			count("patients", "Jumlah Penyandang"),
			count("treated", "Jumlah Penyandang VWD Berat yang Menerima Penanganan Medis"),
		},
	},
	{
		Name:           "inhibitors",
		Title:          "Hemofilia dengan Inhibitor",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "hemophilia_type",
		Columns: []schema.Column{
			enum("hemophilia_type", "Jenis Hemofilia", inhibitorRows),
			count("active", "Terdiagnosis inhibitor aktif"),
			count("new_cases", "Kasus baru 2025"),
			count("treated", "Penanganan"),
		},
	},
	{
		Name:      "nonfactor_patients",
		Title:     "Pasien Terapi Non-Faktor",
		OrgColumn: OrgColumn,
		Columns: []schema.Column{
			count("with_inhibitor", "Dengan inhibitor"),
			count("without_inhibitor", "Tanpa inhibitor"),
		},
	},
	{
		Name:           "treating_hospitals",
		Title:          "RS Penangan Hemofilia",
		OrgColumn:      OrgColumn,
		HospitalColumn: "hospital_name",
		Columns: []schema.Column{
			required(text("hospital_name", "Nama Rumah Sakit")),
			text("services", "Layanan"),
			text("note", "Catatan"),
		},
	},
	{
		Name:           "replacement_products",
		Title:          "Replacement Therapy",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "product",
		Columns: []schema.Column{
			enum("product", "Produk", products),
			optional(enum("availability", "Ketersediaan", availability)),
			optional(enum("used", "Digunakan", yesNo)),
			text("brand", "Merk"),
			count("users", "Jumlah Pengguna"),
			count("iu_per_pack", "Jumlah iu/vial per kemasan"),
			amount("price", "Harga"),
			amount("yearly_usage", "Perkiraan Jumlah Penggunaan/Tahun"),
		},
	},
	{
		Name:           "health_services",
		Title:          "Penanganan Kesehatan",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "hemophilia_type",
		Columns: []schema.Column{
			enum("hemophilia_type", "Jenis Hemofilia", hemophiliaTypes),
			optional(enum("treatment_type", "Jenis Penanganan", treatmentTypes)),
			optional(enum("care_setting", "Layanan Rawat", careSettings)),
			amount("dose_per_visit", "Dosis/orang/kedatangan (IU)"),
			text("frequency", "Frekuensi"),
		},
	},
	{
		Name:           "prophylaxis_by_age",
		Title:          "Hemofilia Berat Prophylaxis per Usia",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "category",
		Columns: []schema.Column{
			enum("category", "Jenis", severeCategories),
			percent("pct_0_18", "0–18 tahun (%)"),
			percent("pct_over_18", ">18 tahun (%)"),
			text("frequency", "Frekuensi"),
			text("product", "Produk yang digunakan"),
			optional(enum("no_data", "Tidak ada data", yesNo)),
			amount("dose_per_visit", "Dosis diterima (IU)/kedatangan"),
			optional(enum("estimate_type", "Estimasi/Data real", estimateTypes)),
		},
	},
	{
		Name:           "service_development",
		Title:          "Perkembangan Pelayanan",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "category",
		HospitalColumn: "hospital_name",
		Columns: []schema.Column{
			enum("category", "Jenis", severeCategories),
			count("gene_therapy_count", "Jumlah Terapi Gen"),
			count("year", "Tahun"),
			text("hospital_name", "Nama Rumah Sakit"),
			text("location", "Lokasi"),
			text("province", "Propinsi"),
		},
	},
	{
		Name:           "donations",
		Title:          "Informasi Donasi",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "donation_type",
		Columns: []schema.Column{
			enum("donation_type", "Jenis Donasi", donationTypes),
			text("brand", "Merk"),
			amount("yearly_iu", "Jumlah Total (IU) Setahun"),
			text("purpose", "Kegunaan"),
		},
	},
	{
		Name:           "transfusion_infections",
		Title:          "Infeksi Transfusi Darah",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "case_label",
		Columns: []schema.Column{
			enum("case_label", "Kasus", caseLabels),
			count("hepatitis_c", "Jumlah Hepatitis C"),
			count("hiv", "Jumlah HIV"),
			text("other_infections", "Penyakit menular lainnya"),
		},
	},
	{
		Name:           "mortality",
		Title:          "Kematian Hemofilia",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "cause",
		Columns: []schema.Column{
			enum("cause", "Penyebab Kematian", mortalityCauses),
			count("bleeding", "Perdarahan"),
			count("liver_disease", "Gangguan Hati"),
			count("hiv", "HIV"),
			count("other_cause", "Penyebab Lain"),
			count("year", "Tahun Kematian"),
		},
	},
	{
		Name:           AgeSummaryTable,
		Title:          "Kelompok Usia Gabungan",
		OrgColumn:      OrgColumn,
		RowLabelColumn: "age_group",
		Derived:        true,
		Columns: []schema.Column{
			optional(enum("age_group", "Kelompok Usia", ageGroups)),
			count("hemophilia_a", "Hemofilia A"),
			count("hemophilia_b", "Hemofilia B"),
			count("other_type", "Hemofilia Tipe Lain"),
			count("vwd_type1", "vWD - Tipe 1"),
			count("vwd_type2", "vWD - Tipe 2"),
		},
	},
}
