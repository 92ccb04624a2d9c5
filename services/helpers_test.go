package services

import "rankwatch/models"

type row struct {
	code  string
	name  string
	price int
}

// snapshotOf builds a snapshot whose ranks follow slice order.
func snapshotOf(source string, rows ...row) *models.Snapshot {
	snap := &models.Snapshot{Source: source}
	for i, r := range rows {
		snap.Items = append(snap.Items, &models.Item{
			Rank:  i + 1,
			Code:  r.code,
			Name:  r.name,
			Price: r.price,
		})
	}
	return snap
}

// itemAt builds a single item with an explicit rank.
func itemAt(code string, rank, price int) *models.Item {
	return &models.Item{Rank: rank, Code: code, Name: code, Price: price}
}
