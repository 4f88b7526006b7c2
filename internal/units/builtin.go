package units

import (
	"github.com/shopspring/decimal"

	"stock-reconciler/internal/models"
)

var (
	dateColumns = []string{"Date", "DATE", "date", "التاريخ", "LA DATE"}

	refColumns = []string{
		"Row Labels", "Référence\nFournisseur", "REFERENCE", "reference", "Référence", "Référence\n",
		"REF", "REF PRODUIT", "referance", "REFERNCE", "البيان", "المرجع", "نوع", "التعيين",
	}

	quantityColumns = []string{
		"Quantité", "STOCK PV", "STOCK FIBRE ", "STOCK", "STOCK ", "STOCKS", "ST-P", "ST-PV", "STOKS",
		"STOCK U", "المخزون", "الكمية", "العدد", "STOCK/M", "STOCK POIDS", "باقي", "Q-STOCKS",
	}

	localisationColumns = []string{"LOCALISATION", "LOCALISATION ", "Localisation", "LOCAL", "Local"}

	defaultStock = models.StockLayout{
		SheetHint: "STOCK",
		Columns: models.ColumnCandidates{
			Ref:          []string{"REFERENCE", "REFERENCE ", "Référence", "REF", "RF", "PRODUIT"},
			Quantity:     []string{"QUANTITE", "QUANTITÉ", "Quantité", "QTE", "S REEL", "S RÉEL", "STOCK"},
			Localisation: localisationColumns,
		},
	}
)

func movement(extraRef, extraQty []string) models.ColumnCandidates {
	return models.ColumnCandidates{
		Date:         dateColumns,
		Ref:          append(append([]string(nil), refColumns...), extraRef...),
		Quantity:     append(append([]string(nil), quantityColumns...), extraQty...),
		Localisation: localisationColumns,
	}
}

func loc(name string, sheets []string, localisations ...string) models.Workshop {
	return models.Workshop{Name: name, Layout: models.Layout{SheetNames: sheets, Localisations: localisations}}
}

func dedicated(name string, sheets []string, stockSheets ...string) models.Workshop {
	return models.Workshop{Name: name, Layout: models.Layout{SheetNames: sheets, StockSheets: stockSheets}}
}

func sheets(names ...string) []string { return names }

// Builtin returns the default unit table. Workshop names double as their
// matching keyword; order is matching priority.
func Builtin() *Table {
	const daily = "الحركة اليومية"

	t, err := NewTable([]models.Unit{
		{
			ID: "Fath1",
			Workshops: []models.Workshop{
				loc("femme 01", sheets(daily), "ATELIER COUTURE FEMME 01"),
				loc("femme 02", sheets(daily), "ATELIER COUTURE FEMME 02"),
				loc("bourde", sheets("MOVEMENT BORDI"), "ATT COUPAGE BOURDEE"),
				loc("coupage", sheets("MOVEMENT"), "ATELIER DE COUPAGE A", "ATELIER DE COUPAGE B", "ATT COUPAGE ROULER", "ATELIER DE ROULOUX & ACCOUDOIRE"),
				loc("+croute", sheets("MOUVMENT"), "ATELIER DE DECHETS"),
				loc("grattage+", sheets("MOUVEMENT"), "ATELIER DE DECHETS"),
				loc("produt", sheets("MOVEMMENT"), "ATT- PRODUIT EL FATH 01"),
				loc("-grattage", sheets("ATT GRATTAGE"), "ATTELIER GRATTAGE A", "ATTELIER GRATTAGE B", "ATT GRATTAGE C", "ATT GRATTAGE BORDER", "ATT GRATTAGE ROULER"),
				loc("rouler", sheets("MOVEMENT ROLI"), "ATT  ROULER"),
				loc("conftection rouli", sheets("MOUVEMENT ATELIER CONFECTION"), "ATTELIER CONFECTION ROULI"),
				loc("brodri", sheets("MOUVEMENT"), "ATTELIER BRODRIE", "ATTELIER BRODERI"),
				loc("conftection bourdi", sheets("MOUVEMENT ATELIER CONFECTION"), "ATELIER CONFECTION BOURDI"),
				loc("fiber cardi", sheets(daily), "ATTELLIER  FIBER CARDI"),
				loc("orielle", sheets(daily), "ATTELIER D'ORIELLER"),
				loc("bloc", sheets("MOUVEM 09"), "MAGASINE DE BLOCS"),
				loc("magaza bourdi", sheets("مخزن البوردي (بلاستيك+ساكوشة)"), "MAGASIN BOURDI"),
				loc("secondaire", sheets("MAGASIN"), "MAGASIN SECONDAIRE(FATH1)"),
				loc("mov-com", sheets("MOV"), "MAGASIN COMMERCIAL"),
			},
			Movement: movement(nil, nil),
			Stock:    defaultStock,
		},
		{
			ID: "Fath2",
			Workshops: []models.Workshop{
				loc("ouate 01", sheets(daily), "ATT OUATE 01"),
				loc("ouate 02", sheets(daily), "ATT OUATE 02"),
				loc("sfifa", sheets("MOUVEMENT 2024"), "ATT SFIFA", "MGZ TRANSFERT"),
				loc("mgz plasic", sheets("MOVEMENT MAGASAIN PLASTIQUE"), "MGZ PLASTIG"),
				loc("secondaire", sheets("MOUV"), "MAG UNITE"),
				loc("-dechet", sheets("MOUVEMENT"), "MAG DECHET"),
				loc("commercial", sheets("MOUVEMENT"), "SERVICE COMMERCIAL"),
				loc("فيبر", sheets("حركة الفيبر اليومية"), " ateliers FIBRE cardi"),
				loc("plastique", sheets("MOVEMONTE DE ATT PLASTIQUE", "MOVEMONTE"), "ATELIER PLASTIQUE"),
				loc("tissu", sheets("MOUVEMENT 2024"), "ATT- TISSU"),
			},
			Movement:       movement(nil, nil),
			Stock:          defaultStock,
			FilterByPeriod: true,
		},
		{
			ID: "Fath5",
			Workshops: []models.Workshop{
				loc("bonda", sheets("ATELLIER COUATE"), "ATELIER BONDA 3D"),
				loc("orillier", sheets("MOV"), "ATELIER CONFECTION D'ORILLIER"),
				loc("confiction", sheets("ATT CONFECTION"), "ATELIER CONFICTION"),
				loc("couette fini", sheets("ATELLIER COUATE"), "ATTELLIER COUETTE  FINI"),
				loc("semi fini", sheets("ATELLIER COUATE"), "ATELIER COUETTE SEMI FINI"),
				loc("rouli", sheets("MOV"), "ATELIER MATELAS ROULI "),
				loc("block", sheets("MOUV"), "MAGASIN DE BLOCK"),
				loc("gratage", sheets("MOUV"), "ATELIER GRATTAGE"),
				loc("coupage", sheets("MOUV"), "ATELIER COUPAGE"),
				loc("comersial", sheets("MOV"), "MAGASIN COMMERCIAL"),
				{
					Name: "secondaire",
					Layout: models.Layout{
						SheetNames:    sheets("MAG"),
						QtyColumn:     "Q-STOCKS",
						Localisations: []string{"MAGASIN SECONDAIRE EL FATEH 05"},
					},
				},
				loc("ouate", sheets("MOUV"), "ATELIER OUATE"),
				loc("outin", sheets("MOUVEMENT"), "ATELIER OUATENAGE"),
			},
			Movement:       movement([]string{"REFERANCE"}, []string{"STOCK/M"}),
			Stock:          defaultStock,
			FilterByPeriod: true,
		},
		{
			ID: "Larbaa",
			Workshops: []models.Workshop{
				dedicated("atelier découpage", sheets(" ATT-DECOUPAGE"), "ATT DECOUPAGE"),
				dedicated("coupage ", sheets("ATT COUPAGE", "ATT-COUP"), "ATT COUPAGE"),
				dedicated("roulés.entré", sheets("Entré Mousse"), "ATT MATELAS ROULEE 01"),
				dedicated("roulés.sortie", sheets("Sortie Atelier 01"), "ATT MATELAS ROULEE 01"),
				dedicated("oreiller", sheets("OR"), "ATT ORIELE", "MAG COUETTE+ORIELE"),
				dedicated("couette", sheets("co", "COUETTE"), "MAG COUETTE+ORIELE"),
				dedicated("magasin blocs", sheets("Mouvements", "Mouvement"), "STOCK BLOCK"),
				dedicated("magasin fibre", sheets("Mouvements"), "STOCK FIBRE"),
				dedicated("magasin ouate", sheets("Magasin Ouate"), "MAG OUATE"),
				dedicated("magasin mousse", sheets(" MOUVEMENT01"), "MAG MOUSSE"),
				dedicated("magasin roules", sheets("Roulés"), "MAG ROULEE"),
				dedicated("grattage", sheets("MAG DE GRATAG"), "ATT-GRATTAGE"),
				dedicated("accessoire", sheets("Mouvements"), "MAGASN CENTRAL"),
				dedicated("piec", sheets("Sheet1"), "PIECE"),
				dedicated("sortie mousse couture", sheets("Sortie Mouse Couture", "Sortie Mousse Couture"), "ATT COUPAGE COUTURE"),
				dedicated(" pet ", sheets("MOUVMENT", "MOUVEMENT"), "PET"),
			},
			Movement: movement(
				[]string{"Référence (Bir Khadem)", "RÉFÉRENCE", "Ref", "REFERANCE", "PRODUIT", "REFFERENCE", "réfferance"},
				[]string{"SOMME", "Stock", "Stock(Kg)", " Quantité", "STOCK KG", "STOCKS KG", "STOCKS M", "stock"},
			),
			Stock: models.StockLayout{
				SheetHint: "STOCK",
				Columns: models.ColumnCandidates{
					Ref:      []string{"REFERENCE", "Référence", "REF", "reference"},
					Quantity: []string{"QUANTITE/KG", "QUANTITE KG", "QUANTITE", "Quantité", "QTE", "STOCK"},
				},
			},
			FilterByPeriod: true,
		},
		{
			ID: "Oran",
			Workshops: []models.Workshop{
				dedicated("block", sheets("Movement Block"), "Stock Block"),
				dedicated("mousse", sheets("Movement Magasin mousse"), "STOCK MOUSSE"),
				dedicated("rouléss", sheets("Movement Roulés"), "STOCK ROULE"),
				dedicated("cardage", sheets("Atelier Cardage"), "STOCK FIBER"),
			},
			Movement: movement(nil, []string{"Q", "Q(U)", "q(u)", "Q-REEL", "Somme de Q(U)", "U"}),
			Stock: models.StockLayout{
				SheetHint: "STOCK",
				Columns: models.ColumnCandidates{
					Ref:      []string{"REFERENCE", "Référence", "REF", "reference", "DESIGNATION"},
					Quantity: []string{"QUANTITE", "Quantité", "QTE", "Q", "STOCK"},
				},
			},
			FilterByPeriod: true,
		},
		{
			ID: "Fibre",
			Workshops: []models.Workshop{
				loc("drafter", sheets("Drafter"), "DRAFTER"),
				loc("extredeuse", sheets("ATELLIER COUATE"), "EXTREDEUSE"),
				loc("filiére", sheets("ATELLIER COUATE"), "Filiére"),
				{
					Name: "carding",
					Layout: models.Layout{
						SheetNames: sheets("الحركةاليومية"), RefColumn: "Référence", QtyColumn: "Quantité",
						Localisations: []string{"AT-CARDING"},
					},
				},
				{
					Name: "magaisain pet",
					Layout: models.Layout{
						SheetNames: sheets("Mouvement"), RefColumn: "Référence", QtyColumn: "Quantité",
						Localisations: []string{"MAGASIN-PET"},
					},
				},
				{
					Name: "magaisain fibre",
					Layout: models.Layout{
						SheetNames: sheets("MOUVEMENT"), RefColumn: "REF PRODUIT", QtyColumn: "Quantité",
						Localisations: []string{"MAGASIN"},
					},
				},
				{
					Name: "magaisain commercial",
					Layout: models.Layout{
						SheetNames: sheets("Mouvement"), RefColumn: "Référence", QtyColumn: "Quantity",
						Localisations: []string{"MAGASIN-Commerciale"},
					},
				},
			},
			Movement: movement(nil, nil),
			Stock: models.StockLayout{
				SheetHint: "STOCK",
				Columns: models.ColumnCandidates{
					Ref:          []string{"PRODUIT ", " PRODUIT ", "PRODUIT", "REF", "REF "},
					Quantity:     []string{"S REEL", "S REEL ", "S RÉEL", "QUANTITE", "QUANTITÉ", "QUANTITE "},
					Localisation: []string{"LOCAL", "Local", "LOCAL ", "LOCALISATION", "LOCALISATION ", "Localisation"},
				},
			},
			FilterByPeriod: true,
		},
		{
			ID: "Fath3",
			Workshops: []models.Workshop{
				{
					Name: "pet",
					Layout: models.Layout{
						SheetNames:             sheets("MOUV PARC03-2023"),
						RefColumn:              "PRODOUITE",
						QtyColumn:              "Q ST PV",
						ExcludeLocalisations:   []string{"ATT TRIAGE"},
						MovementByLocalisation: true,
					},
				},
				{
					Name: "triage",
					Layout: models.Layout{
						SheetNames:    sheets("MOUVM"),
						RefColumn:     "PRODUIT",
						QtyColumn:     "STOCK",
						Localisations: []string{"ATT TRIAGE"},
					},
				},
			},
			Movement: models.ColumnCandidates{
				Date:         dateColumns,
				Ref:          []string{"PRODOUITE", "PRODUIT", "REF", "REFERENCE", "REFERENCE ", "Référence", "REF PRODUIT"},
				Quantity:     []string{"Q ST PV", "Q ST PV ", "Quantité", "STOCK PV", "STOCK"},
				Localisation: []string{"LOCALITATION", "LOCALISATION", "LOCALISATION "},
			},
			Stock: models.StockLayout{
				SheetHint: "STOCKS",
				Columns: models.ColumnCandidates{
					Ref:          []string{"RF", "RF ", "REF", "REFERENCE", "REFERENCE "},
					Quantity:     []string{"S REEL", "S REEL ", "S RÉEL", "QUANTITE", "QUANTITÉ"},
					Localisation: []string{"LOCALISATION", "LOCALISATION "},
				},
			},
			FilterByPeriod: true,
			MatchTolerance: decimal.RequireFromString("0.02"),
		},
	})
	if err != nil {
		panic("units: invalid builtin table: " + err.Error())
	}
	return t
}
