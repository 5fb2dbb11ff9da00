// 版权所有 2024 ClubCMS Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
Package testutil 提供 ClubCMS 测试的共享工具。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 数据库 Mock: NewMockPostgres 在 go-sqlmock 上打开 GORM PostgreSQL
    方言，配合 AssertExpectationsMet 校验执行过的 SQL
  - 异步断言: AssertEventuallyTrue / WaitFor / WaitForChannel
  - JSON: MustJSON / MustParseJSON

本包只依赖第三方库，不引用项目内部包，因此内部包的白盒测试也可以使用。
*/
package testutil
