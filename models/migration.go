package models

import (
	"gorm.io/gorm"
)

func MigrateTable(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{}, &Project{},
		&SalesOrder{}, &PurchaseOrder{}, &CustomerInvoice{}, &VendorBill{},
		&DocumentHistory{}, &NotificationRecord{}, &Attachment{},
	)
}
