package common

var UsingSQLite = false
var UsingPostgreSQL = false
var UsingMySQL = false
